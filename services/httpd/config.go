package httpd

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

type Config struct {
	Enabled     bool   `toml:"enabled"`
	BindAddress string `toml:"bind-address"`
	LogEnabled  bool   `toml:"log-enabled"`
}

func NewConfig() Config {
	return Config{
		Enabled:     true,
		BindAddress: ":9095",
		LogEnabled:  true,
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	_, portStr, err := net.SplitHostPort(c.BindAddress)
	if err != nil {
		return errors.Wrapf(err, "invalid bind address %q", c.BindAddress)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return errors.Errorf("invalid bind address port %q", portStr)
	}
	return nil
}
