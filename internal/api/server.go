// Package api is the HTTP position service: it authenticates callers by API
// key, scopes every request to one project, and applies position batches
// atomically.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/kb/internal/serverdb"
)

// Server is the HTTP API server for kb-server.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	deduper     Deduper
	metrics     *Metrics
	rateLimiter *RateLimiter
	cancel      context.CancelFunc
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithDeduper enables Idempotency-Key handling for position batches.
func WithDeduper(d Deduper) ServerOption {
	return func(s *Server) { s.deduper = d }
}

// NewServer creates a Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB, opts ...ServerOption) (*Server, error) {
	if store == nil {
		return nil, errors.New("api: nil store")
	}
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}
	for _, o := range opts {
		o(s)
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("listening", "addr", ln.Addr().String())

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.rateLimiter.Cleanup(); n > 0 {
					slog.Debug("dropped stale rate limit buckets", "count", n)
				}
			}
		}
	}()

	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.http.Shutdown(ctx)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	read, write := s.config.RateLimitRead, s.config.RateLimitWrite

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Projects
	mux.HandleFunc("POST /v1/projects", s.requireAuth(s.withRateLimit(s.handleCreateProject, write)))
	mux.HandleFunc("GET /v1/projects", s.requireAuth(s.withRateLimit(s.handleListProjects, read)))
	mux.HandleFunc("GET /v1/projects/{id}", s.requireProjectAuth(serverdb.RoleReader, s.withRateLimit(s.handleGetProject, read)))
	mux.HandleFunc("DELETE /v1/projects/{id}", s.requireProjectAuth(serverdb.RoleOwner, s.withRateLimit(s.handleDeleteProject, write)))

	// Members
	mux.HandleFunc("POST /v1/projects/{id}/members", s.requireProjectAuth(serverdb.RoleOwner, s.withRateLimit(s.handleAddMember, write)))
	mux.HandleFunc("GET /v1/projects/{id}/members", s.requireProjectAuth(serverdb.RoleReader, s.withRateLimit(s.handleListMembers, read)))
	mux.HandleFunc("DELETE /v1/projects/{id}/members/{userID}", s.requireProjectAuth(serverdb.RoleOwner, s.withRateLimit(s.handleRemoveMember, write)))

	// Items
	mux.HandleFunc("GET /v1/projects/{id}/items", s.requireProjectAuth(serverdb.RoleReader, s.withRateLimit(s.handleListItems, read)))
	mux.HandleFunc("POST /v1/projects/{id}/items", s.requireProjectAuth(serverdb.RoleWriter, s.withRateLimit(s.handleCreateItem, write)))
	mux.HandleFunc("GET /v1/projects/{id}/items/{itemID}", s.requireProjectAuth(serverdb.RoleReader, s.withRateLimit(s.handleGetItem, read)))
	mux.HandleFunc("DELETE /v1/projects/{id}/items/{itemID}", s.requireProjectAuth(serverdb.RoleWriter, s.withRateLimit(s.handleDeleteItem, write)))
	mux.HandleFunc("POST /v1/projects/{id}/items/positions", s.requireProjectAuth(serverdb.RoleWriter, s.withRateLimit(s.handleUpdatePositions, write)))

	return chain(mux, recoveryMiddleware, requestIDMiddleware, loggerMiddleware, metricsMiddleware(s.metrics), loggingMiddleware, maxBytesMiddleware(1<<20))
}

// handleHealth pings the store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
