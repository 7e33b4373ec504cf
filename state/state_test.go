package state

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryAdapter(t *testing.T) {
	a := NewMemoryAdapter()

	_, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Set("n1", "k", 42))
	v, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, v)

	// Keys are scoped per node.
	_, ok, err = a.Get("n2", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Delete("n1", "k"))
	_, ok, err = a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent key is not an error.
	require.NoError(t, a.Delete("n9", "k"))
}

func TestScope(t *testing.T) {
	a := NewMemoryAdapter()
	s := NewScope(a, "n1")

	require.NoError(t, s.Set("cursor", "abc"))
	v, ok, err := a.Get("n1", "cursor")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "abc", v)

	require.NoError(t, s.Delete("cursor"))
	_, ok, err = s.Get("cursor")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBoltAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	a, err := OpenBolt(path)
	require.NoError(t, err)
	defer a.Close()

	_, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Set("n1", "k", map[string]interface{}{"count": 3}))
	v, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.True(t, ok)
	// Values round-trip through JSON.
	require.Equal(t, map[string]interface{}{"count": float64(3)}, v)

	require.NoError(t, a.Delete("n1", "k"))
	_, ok, err = a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisAdapter(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	a := NewRedisAdapter(client, "")

	_, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Set("n1", "k", "pending"))
	v, ok, err := a.Get("n1", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pending", v)

	// Keys are namespaced under the prefix.
	require.True(t, srv.Exists("flowmesh:state:n1:k"))

	require.NoError(t, a.Delete("n1", "k"))
	_, ok, err = a.Get("n1", "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestConfigValidate(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Validate())

	c.Backend = "bolt"
	require.Error(t, c.Validate())
	c.Path = "state.db"
	require.NoError(t, c.Validate())

	c.Backend = "redis"
	require.Error(t, c.Validate())
	c.Addr = "localhost:6379"
	require.NoError(t, c.Validate())

	c.Backend = "etcd"
	require.Error(t, c.Validate())
}
