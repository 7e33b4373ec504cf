package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/flowmesh/flowmesh/cmd/flowmeshd/run"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
	branch  string
)

func init() {
	if commit == "" {
		commit = "unknown"
	}
	if branch == "" {
		branch = "unknown"
	}
}

func main() {
	m := NewMain()
	if err := m.Run(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program execution.
type Main struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewMain return a new instance of Main.
func NewMain() *Main {
	return &Main{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run determines and runs the command specified by the CLI args.
func (m *Main) Run(args ...string) error {
	name, args := ParseCommandName(args)

	switch name {
	case "", "run":
		cmd := run.NewCommand()
		cmd.Version = version
		cmd.Commit = commit
		cmd.Branch = branch

		if err := cmd.Run(args...); err != nil {
			return fmt.Errorf("run: %s", err)
		}

		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
		<-signalCh

		go func() { _ = cmd.Close() }()

		select {
		case <-cmd.Closed:
		case <-signalCh:
			fmt.Fprintln(m.Stderr, "second signal received, initializing hard shutdown")
		}
		return nil

	case "version":
		fmt.Fprintf(m.Stdout, "flowmeshd version %s (git: %s %s)\n", version, branch, commit)
		return nil

	case "help":
		fmt.Fprintln(m.Stdout, mainUsage)
		return nil

	default:
		return fmt.Errorf(`unknown command "%s", run 'flowmeshd help' for usage`, name)
	}
}

// ParseCommandName extracts the command name and args from the args list.
func ParseCommandName(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

var mainUsage = `usage: flowmeshd [[command] [arguments]]

The commands are:

    run      run the server (default)
    version  display the version
    help     display this help
`
