package v1

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"parley/internal/gateway/handlers"
	"parley/internal/provider"
	"parley/internal/storage"
	"parley/internal/turn"
)

// RouterDeps holds dependencies for the v1 API router.
type RouterDeps struct {
	DB          *storage.DB
	Provider    provider.Provider
	Assembler   *turn.Assembler
	Persister   *turn.Persister
	Model       string
	TurnTimeout time.Duration
	Version     string
}

// Router wraps v1 API dependencies.
type Router struct {
	db          *storage.DB
	provider    provider.Provider
	assembler   *turn.Assembler
	persister   *turn.Persister
	model       string
	turnTimeout time.Duration
	version     string
}

// NewRouter creates a new v1 API router.
func NewRouter(deps *RouterDeps) *Router {
	if deps == nil {
		deps = &RouterDeps{}
	}
	timeout := deps.TurnTimeout
	if timeout <= 0 {
		timeout = turn.DefaultTurnTimeout
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	return &Router{
		db:          deps.DB,
		provider:    deps.Provider,
		assembler:   deps.Assembler,
		persister:   deps.Persister,
		model:       deps.Model,
		turnTimeout: timeout,
		version:     version,
	}
}

// RegisterRoutes registers all v1 API routes.
func (r *Router) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Health
	v1.HandleFunc("/health", r.HandleHealth).Methods(http.MethodGet)

	// Chat
	v1.HandleFunc("/chat", r.HandleChat).Methods(http.MethodPost)
	v1.HandleFunc("/chat/stream", r.HandleChatStream).Methods(http.MethodPost)

	// Sessions
	v1.HandleFunc("/sessions", r.HandleListSessions).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", r.HandleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}", r.HandleRenameSession).Methods(http.MethodPatch)
	v1.HandleFunc("/sessions/{id}", r.HandleDeleteSession).Methods(http.MethodDelete)
	v1.HandleFunc("/sessions/{id}/messages", r.HandleGetMessages).Methods(http.MethodGet)
}

// HandleHealth returns the health status of the API.
func (r *Router) HandleHealth(w http.ResponseWriter, req *http.Request) {
	components := make(map[string]ComponentHealth)

	if r.db != nil {
		if err := r.db.Ping(); err != nil {
			components["database"] = ComponentHealth{Status: "unhealthy", Message: err.Error()}
		} else {
			components["database"] = ComponentHealth{Status: "healthy"}
		}
	}

	if r.provider != nil {
		components["provider"] = ComponentHealth{Status: "configured", Message: r.provider.Name()}
	} else {
		components["provider"] = ComponentHealth{Status: "disabled"}
	}

	status := "healthy"
	for _, comp := range components {
		if comp.Status == "unhealthy" {
			status = "degraded"
			break
		}
	}

	handlers.SendJSON(w, http.StatusOK, HealthResponse{
		Status:     status,
		Version:    r.version,
		Uptime:     handlers.Uptime(),
		Timestamp:  time.Now().Format(time.RFC3339),
		Components: components,
	})
}
