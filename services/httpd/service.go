// Package httpd is the runtime's HTTP surface: event ingress onto the
// trigger bus and graph deployment control.
package httpd

import (
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

type Service struct {
	addr string
	err  chan error
	done chan struct{}

	ln     net.Listener
	server *http.Server

	Handler *Handler

	diag Diagnostic
}

func NewService(c Config, h *Handler, d Diagnostic) *Service {
	return &Service{
		addr:    c.BindAddress,
		err:     make(chan error, 1),
		Handler: h,
		diag:    d,
	}
}

func (s *Service) Open() error {
	s.server = &http.Server{
		Handler:      s.Handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.addr)
	}
	s.ln = ln
	s.done = make(chan struct{})
	s.diag.StartedListening(ln.Addr().String())

	go func() {
		defer close(s.done)
		err := s.server.Serve(s.ln)
		if err != nil && err != http.ErrServerClosed {
			s.diag.Error("http server error", err)
			s.err <- err
			return
		}
		s.err <- nil
	}()
	return nil
}

func (s *Service) Close() error {
	if s.server == nil {
		return nil
	}
	err := s.server.Close()
	<-s.done
	s.server = nil
	s.diag.StoppedListening()
	return err
}

// Addr returns the bound listen address; valid after Open. Useful when
// the configured port is 0.
func (s *Service) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Err returns the channel the serve loop's exit error is delivered on:
// exactly one value per Open, nil on a clean shutdown.
func (s *Service) Err() <-chan error {
	return s.err
}
