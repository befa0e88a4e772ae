// Package server hosts the HTTP API on the standard library server,
// with logging, CORS, rate limiting and panic recovery middleware.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/sandrun/internal/app"
)

// Server is the HTTP front end over the assembled application
type Server struct {
	app        *app.App
	limiter    *RateLimiter
	httpServer *http.Server
}

// New creates the server and its middleware chain
func New(a *app.App) *Server {
	s := &Server{
		app:     a,
		limiter: NewRateLimiter(a.Config.API.RateLimitPerMin),
	}

	var handler http.Handler = s.registerRoutes()
	handler = s.loggingMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.recoveryMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving HTTP until the listener closes
func (s *Server) Start() error {
	s.app.Logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
