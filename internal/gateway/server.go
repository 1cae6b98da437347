// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	v1 "parley/api/v1"
	"parley/internal/config"
	"parley/internal/gateway/handlers"
	"parley/internal/gateway/middleware"
	"parley/internal/gateway/websocket"
	"parley/internal/provider"
	"parley/internal/provider/ollama"
	"parley/internal/provider/openaicompat"
	"parley/internal/retention"
	"parley/internal/storage"
	"parley/internal/summary"
	"parley/internal/tokencount"
	"parley/internal/turn"
	"parley/internal/window"
	"parley/pkg/logger"
)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	watcher     *Watcher
	config      *config.Config
	db          *storage.DB
	rateLimiter *middleware.RateLimiter
	apiRouter   *v1.Router
	provider    provider.Provider
	retention   *retention.Scheduler
	version     string
}

// NewServer creates a new gateway server wired against cfg and db.
func NewServer(cfg *config.Config, hub *websocket.Hub, db *storage.DB, version string) (*Server, error) {
	router := mux.NewRouter()

	rlConfig := middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Gateway.RateLimit.RequestsPerMinute,
		Burst:             cfg.Gateway.RateLimit.Burst,
		Enabled:           cfg.Gateway.RateLimit.Enabled,
		CleanupInterval:   cfg.Gateway.RateLimit.CleanupInterval,
	}
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig.RequestsPerMinute = 60
	}
	if rlConfig.Burst == 0 {
		rlConfig.Burst = 10
	}
	if rlConfig.CleanupInterval == 0 {
		rlConfig.CleanupInterval = 5 * time.Minute
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// Middleware chain: Recovery -> Logging -> CORS -> RateLimit -> Version
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(
					middleware.Version(middleware.DefaultVersionConfig())(router),
				),
			),
		),
	)

	prov, err := buildProvider(cfg.Provider)
	if err != nil {
		rateLimiter.Stop()
		return nil, err
	}

	server := &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0, // Disabled for SSE streaming; bounded by request context
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      cfg,
		db:          db,
		rateLimiter: rateLimiter,
		provider:    prov,
		version:     version,
	}

	server.setupRoutes()
	return server, nil
}

// buildProvider selects the completion backend from config.
func buildProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch cfg.Backend {
	case "", "openai":
		return openaicompat.New(openaicompat.Config{
			Endpoint:  cfg.Endpoint,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	case "ollama":
		return ollama.New(ollama.Config{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider backend %q", cfg.Backend)
	}
}

// setupRoutes wires the context pipeline and registers all routes.
func (s *Server) setupRoutes() {
	counter := tokencount.NewCounter(s.config.Provider.Model)
	trimmer := window.NewTrimmer(counter, s.config.Context.WindowBudgetTokens)
	condenser := summary.New(s.provider, s.config.Provider.Model, s.config.Context.SummaryMaxTokens)

	assembler := turn.NewAssembler(s.db, trimmer, condenser, turn.AssemblerOptions{
		SystemPrompt:  s.config.Context.SystemPrompt,
		TitleMaxChars: s.config.Context.TitleMaxChars,
	})

	persister := turn.NewPersister(s.db, condenser, s.config.Context.TurnTimeout)
	persister.OnPersisted = s.hub.NotifySessionUpdated

	s.apiRouter = v1.NewRouter(&v1.RouterDeps{
		DB:          s.db,
		Provider:    s.provider,
		Assembler:   assembler,
		Persister:   persister,
		Model:       s.config.Provider.Model,
		TurnTimeout: s.config.Context.TurnTimeout,
		Version:     s.version,
	})
	s.apiRouter.RegisterRoutes(s.router)

	// WebSocket endpoint
	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})
}

// Start starts the HTTP server. Blocks until shutdown.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.httpServer.Addr = addr

	go s.hub.Run()

	if s.config.Retention.Enabled {
		sched, err := retention.NewScheduler(s.db, s.config.Retention)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to start retention scheduler")
		} else {
			s.retention = sched
			s.retention.Start()
		}
	}

	logger.Info().
		Str("addr", addr).
		Str("backend", s.provider.Name()).
		Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.retention != nil {
		s.retention.Stop()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

// SetWatcher sets the config watcher for hot reload.
func (s *Server) SetWatcher(w *Watcher) {
	s.watcher = w
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}
