package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/handlers"
	"mercator-hq/relay/pkg/proxy/middleware"
)

// Server is the HTTP front door. It owns the listener lifecycle and
// route wiring; routing decisions live behind the Dispatcher.
type Server struct {
	config         config.ServerConfig
	metricsConfig  config.MetricsConfig
	dispatcher     handlers.Dispatcher
	catalog        handlers.Catalog
	metricsHandler http.Handler

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Deps carries the server's collaborators.
type Deps struct {
	// Dispatcher routes completion requests.
	Dispatcher handlers.Dispatcher

	// Catalog backs the models and readiness endpoints.
	Catalog handlers.Catalog

	// MetricsHandler serves the scrape endpoint. Nil disables it.
	MetricsHandler http.Handler
}

// New creates a new front door server.
func New(cfg config.ServerConfig, metricsCfg config.MetricsConfig, deps Deps) *Server {
	return &Server{
		config:         cfg,
		metricsConfig:  metricsCfg,
		dispatcher:     deps.Dispatcher,
		catalog:        deps.Catalog,
		metricsHandler: deps.MetricsHandler,
		shutdownChan:   make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	handler := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           s.config.ListenAddress,
		Handler:        handler,
		ReadTimeout:    s.config.ReadTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		// WriteTimeout stays unset: streamed completions outlive any
		// sensible fixed write deadline. Per-request deadlines are
		// enforced by the router.
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Handler returns the fully wired route handler. Exposed so tests can
// drive the server through httptest without binding a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Stop requests shutdown from another goroutine.
func (s *Server) Stop() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})
}

// Shutdown gracefully shuts down the server, waiting up to the
// configured shutdown timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	slog.Info("relay server stopped")
	return nil
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Probes and metrics stay open; only the completion surface is
	// authenticated.
	authed := middleware.AuthMiddleware(s.config.APIKeys)
	mux.Handle("/v1/chat/completions", authed(handlers.NewChatHandler(s.dispatcher)))
	mux.Handle("/v1/models", authed(handlers.NewModelsHandler(s.catalog)))
	mux.Handle("/health", handlers.NewHealthHandler())
	mux.Handle("/ready", handlers.NewReadyHandler(s.catalog))

	if s.metricsConfig.Enabled && s.metricsHandler != nil {
		mux.Handle(s.metricsConfig.Path, s.metricsHandler)
	}

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
