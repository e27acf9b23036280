// Package server wires the store, engines, and HTTP API together and owns
// their lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ryanmcguirecode/batchdesk/internal/api"
	"github.com/ryanmcguirecode/batchdesk/internal/assign"
	"github.com/ryanmcguirecode/batchdesk/internal/config"
	"github.com/ryanmcguirecode/batchdesk/internal/lease"
	"github.com/ryanmcguirecode/batchdesk/internal/orgs"
	"github.com/ryanmcguirecode/batchdesk/internal/review"
	"github.com/ryanmcguirecode/batchdesk/internal/server/endpoints"
	"github.com/ryanmcguirecode/batchdesk/internal/store"
	"github.com/ryanmcguirecode/batchdesk/internal/svcctx"
	"github.com/ryanmcguirecode/batchdesk/internal/sweeper"
)

// Config holds server configuration. Store is constructed by the caller
// and injected; the server owns its shutdown.
type Config struct {
	Host   string
	Port   string
	Store  store.Store
	Logger *slog.Logger

	// Assignment bounds the contention retry loop.
	Assignment config.AssignmentConfig

	// Sweep sets the liveness sweep cadence and thresholds.
	Sweep config.SweepConfig
}

// Server is the Batchdesk HTTP server plus its background sweep.
type Server struct {
	httpServer *http.Server
	st         store.Store
	services   *svcctx.Services
	sweep      *sweeper.Sweeper
	logger     *slog.Logger

	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// New creates a server around an injected store.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store must be provided")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	organizations := orgs.New(cfg.Store, cfg.Logger)
	leases := lease.NewManager(cfg.Store, cfg.Logger)
	retryPolicy := store.RetryPolicy{
		Attempts:  cfg.Assignment.RetryAttempts,
		BaseDelay: cfg.Assignment.RetryBaseDelay,
		MaxJitter: cfg.Assignment.RetryMaxJitter,
	}

	s := &Server{
		st:     cfg.Store,
		logger: cfg.Logger,
		sweep: sweeper.New(cfg.Store, leases, sweeper.Config{
			Interval:            cfg.Sweep.Interval,
			StaleThreshold:      cfg.Sweep.StaleThreshold,
			AggressiveThreshold: cfg.Sweep.AggressiveThreshold,
		}, cfg.Logger),
	}

	s.services = &svcctx.Services{
		Store:    cfg.Store,
		Assigner: assign.New(cfg.Store, organizations, retryPolicy, cfg.Logger),
		Leases:   leases,
		Review:   review.New(cfg.Store, organizations, cfg.Logger),
		Sweeper:  s.sweep,
		Orgs:     organizations,
		Logger:   cfg.Logger,
	}

	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start runs the HTTP server and the liveness sweep. It blocks until the
// context is cancelled or a fatal error occurs, then shuts down cleanly.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.st.Ping(ctx); err != nil {
		s.setNotRunning()
		return fmt.Errorf("store health check failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.sweep.Run(gctx)
	})

	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	if closeErr := s.st.Close(); closeErr != nil {
		s.logger.Error("store close error", "error", closeErr)
	}
	s.setNotRunning()
	s.logger.Info("server stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the fully wired HTTP handler. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit guards endpoints that need the store and engines wired.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.ServicesFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
