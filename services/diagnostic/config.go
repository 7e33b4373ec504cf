package diagnostic

import (
	"strings"

	"github.com/pkg/errors"
)

type Config struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

func NewConfig() Config {
	return Config{
		File:  "STDERR",
		Level: "INFO",
	}
}

func (c Config) Validate() error {
	switch strings.ToUpper(c.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return errors.Errorf("unknown logging level %s", c.Level)
	}
	if c.File == "" {
		return errors.New("logging file cannot be empty")
	}
	return nil
}
