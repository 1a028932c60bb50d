package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/internal/agent"
	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/healthprobe"
	"github.com/quantfold/crossarb/pkg/types"
)

// AgentManager is the supervisor surface the API exposes.
type AgentManager interface {
	Create(userID string, cfg config.AgentConfig) error
	Start(ctx context.Context, userID string) error
	Stop(ctx context.Context, userID string) error
	Remove(ctx context.Context, userID string) error
	UpdateConfig(userID string, cfg config.AgentConfig) error
	Status(userID string) (agent.State, error)
	StatusAll() []agent.State
}

// QuoteReader exposes the most recent non-empty quote snapshot. Display only;
// the trading path consumes fresh snapshots directly.
type QuoteReader interface {
	LastGood() (types.QuoteSnapshot, bool)
}

// Server provides HTTP endpoints for metrics, health checks and the agent
// management API.
type Server struct {
	server        *http.Server
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
}

// Config holds server configuration.
type Config struct {
	Port          string
	Logger        *zap.Logger
	HealthChecker *healthprobe.HealthChecker
	Agents        AgentManager
	AgentDefaults config.AgentConfig
	Quotes        QuoteReader
}

// New creates a new HTTP server.
func New(cfg *Config) *Server {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Routes
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/health", cfg.HealthChecker.Health())
	r.Get("/ready", cfg.HealthChecker.Ready())

	if cfg.Quotes != nil {
		r.Get("/api/quotes", handleQuotes(cfg.Quotes))
	}

	if cfg.Agents != nil {
		h := NewAgentHandler(cfg.Agents, cfg.AgentDefaults, cfg.Logger)
		r.Route("/api/agents", func(r chi.Router) {
			r.Get("/", h.HandleList)
			r.Post("/", h.HandleCreate)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.HandleStatus)
				r.Delete("/", h.HandleRemove)
				r.Post("/start", h.HandleStart)
				r.Post("/stop", h.HandleStop)
				r.Put("/config", h.HandleUpdateConfig)
			})
		})
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		server:        server,
		logger:        cfg.Logger,
		healthChecker: cfg.HealthChecker,
	}
}

func handleQuotes(quotes QuoteReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := quotes.LastGood()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server stops or encounters an error.
func (s *Server) Start() error {
	s.logger.Info("http-server-starting", zap.String("addr", s.server.Addr))

	err := s.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http-server-shutting-down")

	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("http-server-shutdown-complete")
	return nil
}
