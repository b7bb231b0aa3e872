package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cat-control/ccc/internal/auth"
)

// Version reported by the health and capabilities endpoints.
const Version = "1.0.0"

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	telemetryHub   TelemetryPort
	orchestrator   OrchestratorPort
	authMiddleware *auth.Middleware
	startTime      time.Time
}

// NewServer creates an API server. authMiddleware may be nil to disable
// auth.
func NewServer(orchestrator OrchestratorPort, telemetryHub TelemetryPort, authMiddleware *auth.Middleware) *Server {
	return &Server{
		telemetryHub:   telemetryHub,
		orchestrator:   orchestrator,
		authMiddleware: authMiddleware,
		startTime:      time.Now(),
	}
}

// Start serves HTTP on addr until Stop is called. WriteTimeout stays
// unset because the telemetry endpoint holds its response open.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}
	return nil
}
