package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisAdapter stores node state in redis so that stateful nodes deployed
// across multiple processes observe the same coordination data.
type RedisAdapter struct {
	client *redis.Client
	prefix string
}

// NewRedisAdapter wraps an existing redis client. The prefix namespaces
// all keys; the empty string defaults to "flowmesh:state".
func NewRedisAdapter(client *redis.Client, prefix string) *RedisAdapter {
	if prefix == "" {
		prefix = "flowmesh:state"
	}
	return &RedisAdapter{client: client, prefix: prefix}
}

func (a *RedisAdapter) key(nodeID, key string) string {
	return a.prefix + ":" + nodeID + ":" + key
}

func (a *RedisAdapter) Get(nodeID, key string) (interface{}, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := a.client.Get(ctx, a.key(nodeID, key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get")
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, errors.Wrapf(err, "decode state %s/%s", nodeID, key)
	}
	return value, true, nil
}

func (a *RedisAdapter) Set(nodeID, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode state %s/%s", nodeID, key)
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return errors.Wrap(a.client.Set(ctx, a.key(nodeID, key), raw, 0).Err(), "redis set")
}

func (a *RedisAdapter) Delete(nodeID, key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return errors.Wrap(a.client.Del(ctx, a.key(nodeID, key)).Err(), "redis del")
}
