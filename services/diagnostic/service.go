// Package diagnostic builds the runtime's structured logging from a
// single root zap logger. Each component gets a named child; the
// runtime and its nodes log through the handler types in handlers.go.
package diagnostic

import (
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Service struct {
	c Config

	stdout zapcore.WriteSyncer
	stderr zapcore.WriteSyncer

	mu     sync.Mutex
	root   *zap.Logger
	level  zap.AtomicLevel
	closer io.Closer
}

func NewService(c Config, stdout, stderr zapcore.WriteSyncer) *Service {
	return &Service{
		c:      c,
		stdout: stdout,
		stderr: stderr,
		level:  zap.NewAtomicLevel(),
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var output zapcore.WriteSyncer
	switch s.c.File {
	case "STDERR":
		output = s.stderr
	case "STDOUT":
		output = s.stdout
	default:
		dir := path.Dir(s.c.File)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		f, err := os.OpenFile(s.c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return err
		}
		output = f
		s.closer = f
	}

	if err := s.setLevel(s.c.Level); err != nil {
		return err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), output, s.level)
	s.root = zap.New(core)
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root != nil {
		// Sync errors on stderr are expected on some platforms.
		_ = s.root.Sync()
	}
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

// Root returns the root logger; valid after Open.
func (s *Service) Root() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// SetLevel changes the level of every logger derived from the root.
func (s *Service) SetLevel(level string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLevel(level)
}

func (s *Service) setLevel(level string) error {
	switch strings.ToUpper(level) {
	case "DEBUG":
		s.level.SetLevel(zapcore.DebugLevel)
	case "INFO":
		s.level.SetLevel(zapcore.InfoLevel)
	case "WARN":
		s.level.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		s.level.SetLevel(zapcore.ErrorLevel)
	default:
		return errors.Errorf("unknown logging level %s", level)
	}
	return nil
}

// NewRuntimeHandler returns the flowmesh.Diagnostic implementation for
// the core runtime.
func (s *Service) NewRuntimeHandler() *RuntimeHandler {
	return &RuntimeHandler{l: s.Root().Named("runtime")}
}

// NewHTTPDHandler returns the diagnostic handler for the HTTP service.
func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{l: s.Root().Named("httpd")}
}
