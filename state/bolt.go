package state

import (
	"encoding/json"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltAdapter stores node state in a local bolt database, one bucket per
// node instance. State written through it survives a process restart.
type BoltAdapter struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) a bolt database at path.
func OpenBolt(path string) (*BoltAdapter, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open boltdb @ %q", path)
	}
	return &BoltAdapter{db: db}, nil
}

func (a *BoltAdapter) Close() error {
	return a.db.Close()
}

func (a *BoltAdapter) Get(nodeID, key string) (interface{}, bool, error) {
	var raw []byte
	err := a.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(nodeID))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "bolt get")
	}
	if raw == nil {
		return nil, false, nil
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, errors.Wrapf(err, "decode state %s/%s", nodeID, key)
	}
	return value, true, nil
}

func (a *BoltAdapter) Set(nodeID, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode state %s/%s", nodeID, key)
	}
	return a.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(nodeID))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

func (a *BoltAdapter) Delete(nodeID, key string) error {
	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(nodeID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
