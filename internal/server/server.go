// Package server exposes the gateway over HTTP: invocation, agent
// registry management, session memory, and an SSE stream of registry
// updates.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agentgate-oss/agentgate/internal/auth"
	"github.com/agentgate-oss/agentgate/internal/config"
	"github.com/agentgate-oss/agentgate/internal/engine"
	"github.com/agentgate-oss/agentgate/internal/memory"
	"github.com/agentgate-oss/agentgate/internal/registry"
	"github.com/agentgate-oss/agentgate/internal/telemetry"
)

// Server is the agentgate HTTP server.
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	registry *registry.Store
	sessions memory.SessionStore
	gate     *auth.Gate
	limiter  *RateLimiter
	metrics  *telemetry.Metrics
	logger   *telemetry.Logger
}

// New creates a new server instance.
func New(cfg *config.Config, eng *engine.Engine, reg *registry.Store, sessions memory.SessionStore, metrics *telemetry.Metrics, logger *telemetry.Logger) *Server {
	limiter := NewRateLimiter(map[string]RateRule{
		"invoke": {Limit: 600, Window: time.Minute},
	})

	return &Server{
		cfg:      cfg,
		engine:   eng,
		registry: reg,
		sessions: sessions,
		gate:     auth.NewGate(cfg.AuthToken),
		limiter:  limiter,
		metrics:  metrics,
		logger:   logger,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := s.setupRoutes()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting agentgate server", "addr", addr, "backend", s.engine.Backend().Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Service metadata
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /schema", s.handleSchema)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Invocation against the active agent
	mux.HandleFunc("POST /invoke", s.handleInvoke)
	mux.HandleFunc("POST /stream", s.handleStream)

	// Registry
	mux.HandleFunc("POST /agents/register", s.handleRegisterAgent)
	mux.HandleFunc("GET /agents", s.handleListAgents)
	mux.HandleFunc("GET /agents/updates/stream", s.handleAgentUpdates)
	mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)
	mux.HandleFunc("GET /agents/{id}/schema", s.handleAgentSchema)
	mux.HandleFunc("GET /agents/{id}/examples", s.handleAgentExamples)
	mux.HandleFunc("POST /agents/{id}/archive", s.handleArchiveAgent)
	mux.HandleFunc("POST /agents/{id}/unarchive", s.handleUnarchiveAgent)
	mux.HandleFunc("POST /agents/{id}/invoke", s.handleInvokeAgent)
	mux.HandleFunc("POST /agents/{id}/stream", s.handleStreamAgent)

	// Sessions
	mux.HandleFunc("POST /sessions", s.handleCreateSession)
	mux.HandleFunc("POST /sessions/{id}/events", s.handleAppendEvents)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)

	return mux
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.setupRoutes())
}

// corsMiddleware applies the configured origin allowlist. "*" allows
// any origin.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := map[string]bool{}
	allowAll := false
	for _, origin := range strings.Split(s.cfg.CORSOrigins, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			allowAll = true
		} else if origin != "" {
			allowed[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
