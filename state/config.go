package state

import (
	"io"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Config selects the state adapter backend.
type Config struct {
	Backend string `toml:"backend"`
	// Path to the bolt database file, for the bolt backend.
	Path string `toml:"path"`
	// Addr of the redis server, for the redis backend.
	Addr string `toml:"addr"`
	// Prefix namespacing redis keys.
	Prefix string `toml:"prefix"`
}

func NewConfig() Config {
	return Config{
		Backend: "memory",
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
	case "bolt":
		if c.Path == "" {
			return errors.New("state: bolt backend requires a path")
		}
	case "redis":
		if c.Addr == "" {
			return errors.New("state: redis backend requires an addr")
		}
	default:
		return errors.Errorf("state: unknown backend %q", c.Backend)
	}
	return nil
}

// Open constructs the configured adapter. The returned closer is nil for
// backends with nothing to release.
func (c Config) Open() (Adapter, io.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	switch c.Backend {
	case "bolt":
		a, err := OpenBolt(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return a, a, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.Addr})
		return NewRedisAdapter(client, c.Prefix), client, nil
	default:
		return NewMemoryAdapter(), nil, nil
	}
}
