package run

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh/services/diagnostic"
	"github.com/flowmesh/flowmesh/services/httpd"
	"github.com/flowmesh/flowmesh/state"
)

// Config represents the configuration format for the flowmeshd binary.
type Config struct {
	HTTP    httpd.Config      `toml:"http"`
	Logging diagnostic.Config `toml:"logging"`
	State   state.Config      `toml:"state"`

	Hostname string `toml:"hostname"`
	// DeploymentDir holds graph deployment payloads (*.json) loaded at
	// startup.
	DeploymentDir string `toml:"deployment-dir"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	return &Config{
		HTTP:     httpd.NewConfig(),
		Logging:  diagnostic.NewConfig(),
		State:    state.NewConfig(),
		Hostname: "localhost",
	}
}

// NewDemoConfig returns the config that runs when no config is specified.
func NewDemoConfig() *Config {
	return NewConfig()
}

// FromTomlFile loads the config from a TOML file.
func (c *Config) FromTomlFile(fpath string) error {
	bs, err := os.ReadFile(fpath)
	if err != nil {
		return err
	}
	if err := toml.Unmarshal(bs, c); err != nil {
		return errors.Wrapf(err, "decode config %s", fpath)
	}
	return nil
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return errors.Wrap(err, "http")
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.Wrap(err, "logging")
	}
	if err := c.State.Validate(); err != nil {
		return errors.Wrap(err, "state")
	}
	if c.DeploymentDir != "" {
		if _, err := os.Stat(c.DeploymentDir); err != nil {
			return errors.Wrapf(err, "deployment-dir %s", c.DeploymentDir)
		}
	}
	return nil
}

// deploymentFiles lists the deployment payloads in DeploymentDir.
func (c *Config) deploymentFiles() ([]string, error) {
	if c.DeploymentDir == "" {
		return nil, nil
	}
	return filepath.Glob(filepath.Join(c.DeploymentDir, "*.json"))
}
