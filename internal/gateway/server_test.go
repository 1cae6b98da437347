package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/config"
	"parley/internal/gateway/websocket"
	"parley/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Provider.Backend = "openai"
	cfg.Provider.Model = "test-model"
	cfg.Context.WindowBudgetTokens = 1500

	srv, err := NewServer(cfg, websocket.NewHub(), db, "test")
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func TestNewServerRegistersRoutes(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewServerUnknownBackend(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := &config.Config{}
	cfg.Provider.Backend = "carrier-pigeon"

	_, err = NewServer(cfg, websocket.NewHub(), db, "test")
	assert.Error(t, err)
}

func TestBuildProviderSelection(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{"", "openai"},
		{"openai", "openai"},
		{"ollama", "ollama"},
	}
	for _, tt := range tests {
		t.Run("backend "+tt.backend, func(t *testing.T) {
			prov, err := buildProvider(config.ProviderConfig{Backend: tt.backend})
			require.NoError(t, err)
			assert.Equal(t, tt.want, prov.Name())
		})
	}
}
