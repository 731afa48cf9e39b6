// Package server exposes the operator HTTP API: engine status, suggestion
// approvals, performance history and alerts. It is an inspection and
// approval surface; trading decisions never originate here.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/alert"
	"github.com/junghoon-woo/danta/internal/database"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/journal"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// SnapshotReader serves the latest snapshot for status endpoints.
type SnapshotReader interface {
	Latest(now time.Time, maxAge time.Duration) (*snapshot.Snapshot, error)
}

// Config wires the server's dependencies.
type Config struct {
	Port        int
	DB          *database.DB
	Users       *journal.UserRepository
	Suggestions *journal.SuggestionRepository
	Orders      *journal.OrderRepository
	Perf        *journal.PerfRepository
	Alerts      *alert.Service
	Snapshots   SnapshotReader
	SnapshotAge time.Duration // staleness bound reported by /api/status
	Clock       domain.Clock
	Log         zerolog.Logger
}

// Server is the operator HTTP API.
type Server struct {
	router chi.Router
	server *http.Server
	cfg    Config
	log    zerolog.Logger
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock()
	}
	if cfg.SnapshotAge <= 0 {
		cfg.SnapshotAge = 15 * time.Minute
	}
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleSystemHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/users", s.handleUsers)
		r.Get("/suggestions", s.handleSuggestions)
		r.Post("/suggestions/{id}/approve", s.handleApprove)
		r.Post("/suggestions/{id}/reject", s.handleReject)
		r.Post("/suggestions/{id}/executed", s.handleExecuted)
		r.Get("/orders", s.handleOrders)
		r.Get("/performance", s.handlePerformance)
		r.Get("/alerts", s.handleAlerts)
		r.Get("/snapshot/latest", s.handleSnapshotMeta)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("operator api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
