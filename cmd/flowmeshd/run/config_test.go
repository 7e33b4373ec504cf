package run_test

import (
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/cmd/flowmeshd/run"
)

func TestConfig_Parse(t *testing.T) {
	var c run.Config
	_, err := toml.Decode(`
hostname = "mesh-1"
deployment-dir = ""

[http]
enabled = true
bind-address = ":9095"

[logging]
file = "STDOUT"
level = "DEBUG"

[state]
backend = "bolt"
path = "/var/lib/flowmesh/state.db"
`, &c)
	require.NoError(t, err)

	require.Equal(t, "mesh-1", c.Hostname)
	require.Equal(t, ":9095", c.HTTP.BindAddress)
	require.Equal(t, "STDOUT", c.Logging.File)
	require.Equal(t, "DEBUG", c.Logging.Level)
	require.Equal(t, "bolt", c.State.Backend)
	require.Equal(t, "/var/lib/flowmesh/state.db", c.State.Path)
}

func TestConfig_Validate(t *testing.T) {
	c := run.NewConfig()
	require.NoError(t, c.Validate())

	c = run.NewConfig()
	c.Logging.Level = "TRACE"
	require.Error(t, c.Validate())

	c = run.NewConfig()
	c.State.Backend = "etcd"
	require.Error(t, c.Validate())

	c = run.NewConfig()
	c.DeploymentDir = "/no/such/dir"
	require.Error(t, c.Validate())
}
