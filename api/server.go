package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openlot/parkd/infra/logger"
)

// Server wraps the HTTP server carrying the operator API.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

// NewServer builds a server for the given listen address and handler.
func NewServer(addr string, h http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: log,
	}
}

// Start serves requests until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("http api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("http api shutting down")
	return s.httpServer.Shutdown(ctx)
}
