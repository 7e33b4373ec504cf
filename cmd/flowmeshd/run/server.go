package run

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/flowmesh/flowmesh"
	"github.com/flowmesh/flowmesh/services/diagnostic"
	"github.com/flowmesh/flowmesh/services/httpd"
)

// BuildInfo represents the build details for the server code.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

// Service manages a subsystem's lifecycle.
type Service interface {
	Open() error
	Close() error
}

// Server assembles the runtime and its services from a Config and
// manages their startup and shutdown in the proper order.
type Server struct {
	buildInfo BuildInfo
	config    *Config

	err chan error

	Runtime *flowmesh.Runtime

	HTTPDService *httpd.Service

	DiagService *diagnostic.Service
	diag        *diagnostic.RuntimeHandler

	stateCloser io.Closer

	Services []Service
}

// NewServer returns a new instance of Server built from a config.
func NewServer(c *Config, buildInfo *BuildInfo, diagService *diagnostic.Service) (*Server, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		buildInfo:   *buildInfo,
		config:      c,
		err:         make(chan error, 1),
		DiagService: diagService,
		diag:        diagService.NewRuntimeHandler(),
	}

	s.Runtime = flowmesh.NewRuntime(s.diag)

	adapter, closer, err := c.State.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open state backend")
	}
	s.Runtime.State = adapter
	s.stateCloser = closer

	if c.HTTP.Enabled {
		s.appendHTTPDService(c.HTTP)
	}
	return s, nil
}

func (s *Server) appendHTTPDService(c httpd.Config) {
	h := httpd.NewHandler(s.Runtime, s.DiagService.NewHTTPDHandler())
	srv := httpd.NewService(c, h, s.DiagService.NewHTTPDHandler())
	s.HTTPDService = srv
	s.Services = append(s.Services, srv)
}

// Open starts the runtime and all services, then loads the deployments
// from the configured directory.
func (s *Server) Open() error {
	if err := s.Runtime.Open(); err != nil {
		return errors.Wrap(err, "open runtime")
	}
	for i, service := range s.Services {
		if err := service.Open(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = s.Services[j].Close()
			}
			_ = s.Runtime.Close()
			return errors.Wrap(err, "open service")
		}
	}
	if err := s.loadDeployments(); err != nil {
		_ = s.Close()
		return err
	}

	if s.HTTPDService != nil {
		// Watch if something dies; the service delivers exactly one
		// value per Open, so the forwarder exits on clean shutdown too.
		go func() {
			s.err <- <-s.HTTPDService.Err()
		}()
	}
	return nil
}

func (s *Server) loadDeployments() error {
	files, err := s.config.deploymentFiles()
	if err != nil {
		return errors.Wrap(err, "list deployments")
	}
	for _, fpath := range files {
		bs, err := os.ReadFile(fpath)
		if err != nil {
			return errors.Wrapf(err, "read deployment %s", fpath)
		}
		var d flowmesh.Deployment
		if err := json.Unmarshal(bs, &d); err != nil {
			return errors.Wrapf(err, "decode deployment %s", fpath)
		}
		if _, err := s.Runtime.Deploy(d); err != nil {
			return errors.Wrapf(err, "deploy %s", fpath)
		}
	}
	return nil
}

// Close shuts down the services and the runtime.
func (s *Server) Close() error {
	var last error
	for i := len(s.Services) - 1; i >= 0; i-- {
		if err := s.Services[i].Close(); err != nil {
			last = err
		}
	}
	if err := s.Runtime.Close(); err != nil {
		last = err
	}
	if s.stateCloser != nil {
		if err := s.stateCloser.Close(); err != nil {
			last = err
		}
	}
	return last
}

// Err returns an error channel services report fatal errors on.
func (s *Server) Err() <-chan error {
	return s.err
}
