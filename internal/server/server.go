package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/go-tripwise/internal/app/state"
	"github.com/FACorreiaa/go-tripwise/internal/pkg/config"
)

// Server holds the dependencies for the gateway HTTP server. The gateway is
// the UI-consumer boundary: components read manager state and trigger
// mutations through it, never touching the cache or remote services directly.
type Server struct {
	cfg     *config.Config
	logger  *zap.Logger
	manager *state.Manager
	router  http.Handler
}

// New creates a new Server instance with all dependencies.
func New(cfg *config.Config, logger *zap.Logger, manager *state.Manager) *Server {
	return &Server{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
	}
}

// HTTPServer creates and configures the HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.ServerPort,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the state event stream holds connections open
	}
}

// SetRouter sets the HTTP router/handler.
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// GetLogger returns the logger instance.
func (s *Server) GetLogger() *zap.Logger {
	return s.logger
}

// GetConfig returns the configuration.
func (s *Server) GetConfig() *config.Config {
	return s.cfg
}
