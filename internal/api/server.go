package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aimeuniverse/contentsync/internal/config"
	"github.com/aimeuniverse/contentsync/internal/logger"
)

// Server wraps the HTTP server lifecycle.
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewServer builds the HTTP server over the configured router.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	router := SetupRouter(deps)

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Address,
			Handler:           router,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: deps.Logger,
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", logger.String("address", s.srv.Addr))

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(ctx)
}
