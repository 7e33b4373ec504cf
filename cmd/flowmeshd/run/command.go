package run

import (
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap/zapcore"

	"github.com/flowmesh/flowmesh/services/diagnostic"
)

// Command represents the command executed by "flowmeshd run".
type Command struct {
	Version string
	Branch  string
	Commit  string

	closing chan struct{}
	Closed  chan struct{}

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Server      *Server
	diagService *diagnostic.Service
}

// NewCommand return a new instance of Command.
func NewCommand() *Command {
	return &Command{
		closing: make(chan struct{}),
		Closed:  make(chan struct{}),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
}

// Run parses the config from args and runs the server.
func (cmd *Command) Run(args ...string) error {
	options, err := cmd.ParseFlags(args...)
	if err != nil {
		return err
	}

	config, err := cmd.ParseConfig(options.ConfigPath)
	if err != nil {
		return fmt.Errorf("parse config: %s", err)
	}

	if options.Hostname != "" {
		config.Hostname = options.Hostname
	}
	if options.LogFile != "" {
		config.Logging.File = options.LogFile
	}
	if options.LogLevel != "" {
		config.Logging.Level = options.LogLevel
	}
	if options.DeploymentDir != "" {
		config.DeploymentDir = options.DeploymentDir
	}

	cmd.diagService = diagnostic.NewService(config.Logging,
		zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
	if err := cmd.diagService.Open(); err != nil {
		return fmt.Errorf("init logging: %s", err)
	}

	buildInfo := &BuildInfo{Version: cmd.Version, Commit: cmd.Commit, Branch: cmd.Branch}
	s, err := NewServer(config, buildInfo, cmd.diagService)
	if err != nil {
		return fmt.Errorf("create server: %s", err)
	}
	if err := s.Open(); err != nil {
		return fmt.Errorf("open server: %s", err)
	}
	cmd.Server = s

	go cmd.monitorServerErrors()
	return nil
}

// Close shuts down the server.
func (cmd *Command) Close() error {
	defer close(cmd.Closed)
	defer func() {
		if cmd.diagService != nil {
			_ = cmd.diagService.Close()
		}
	}()
	close(cmd.closing)
	if cmd.Server != nil {
		return cmd.Server.Close()
	}
	return nil
}

func (cmd *Command) monitorServerErrors() {
	for {
		select {
		case err := <-cmd.Server.Err():
			if err != nil {
				fmt.Fprintln(cmd.Stderr, err)
			}
		case <-cmd.closing:
			return
		}
	}
}

// ParseFlags parses the command line flags from args and returns an
// options set.
func (cmd *Command) ParseFlags(args ...string) (Options, error) {
	var options Options
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.StringVar(&options.ConfigPath, "config", "", "")
	fs.StringVar(&options.Hostname, "hostname", "", "")
	fs.StringVar(&options.LogFile, "log-file", "", "")
	fs.StringVar(&options.LogLevel, "log-level", "", "")
	fs.StringVar(&options.DeploymentDir, "deployments", "", "")
	fs.Usage = func() { fmt.Fprintln(cmd.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return options, nil
}

// ParseConfig parses the config at path. It returns a demo configuration
// if path is blank.
func (cmd *Command) ParseConfig(path string) (*Config, error) {
	if path == "" {
		fmt.Fprintln(cmd.Stdout, "no configuration provided, using default settings")
		return NewDemoConfig(), nil
	}

	fmt.Fprintf(cmd.Stdout, "using configuration at: %s\n", path)
	config := NewConfig()
	if err := config.FromTomlFile(path); err != nil {
		return nil, err
	}
	return config, nil
}

var usage = `usage: run [flags]

run starts the flowmeshd server.

        -config <path>
                          Set the path to the configuration file.

        -hostname <name>
                          Override the hostname in the configuration file.

        -deployments <dir>
                          Override the deployment directory; graph payloads
                          (*.json) in the directory are deployed at startup.

        -log-file <path>
                          Override the logging file.

        -log-level <level>
                          Override the logging level: DEBUG, INFO, WARN or ERROR.
`

// Options represents the command line options that can be parsed.
type Options struct {
	ConfigPath    string
	Hostname      string
	LogFile       string
	LogLevel      string
	DeploymentDir string
}
