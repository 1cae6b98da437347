package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/provider"
	"parley/internal/storage"
	"parley/internal/summary"
	"parley/internal/tokencount"
	"parley/internal/turn"
	"parley/internal/window"
)

// testProvider serves canned chat and stream responses.
type testProvider struct {
	chatContent string
	chatErr     error
	streamEvts  []provider.ChatEvent
	streamErr   error
}

func (p *testProvider) Name() string { return "test" }

func (p *testProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.chatErr != nil {
		return nil, p.chatErr
	}
	return &provider.ChatResponse{Content: p.chatContent, FinishReason: provider.FinishReasonStop}, nil
}

func (p *testProvider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	if p.streamErr != nil {
		return nil, p.streamErr
	}
	ch := make(chan provider.ChatEvent, len(p.streamEvts))
	for _, ev := range p.streamEvts {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func newTestRouter(t *testing.T, prov provider.Provider) (*Router, *storage.DB, *mux.Router) {
	t.Helper()
	return newTestRouterWithTimeout(t, prov, 5*time.Second)
}

func newTestRouterWithTimeout(t *testing.T, prov provider.Provider, timeout time.Duration) (*Router, *storage.DB, *mux.Router) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cond := summary.New(prov, "test-model", 64)
	trimmer := window.NewTrimmer(tokencount.NewCounter("gpt-4o-mini"), 1500)
	assembler := turn.NewAssembler(db, trimmer, cond, turn.AssemblerOptions{SystemPrompt: "Be helpful."})
	persister := turn.NewPersister(db, cond, time.Second)

	r := NewRouter(&RouterDeps{
		DB:          db,
		Provider:    prov,
		Assembler:   assembler,
		Persister:   persister,
		Model:       "test-model",
		TurnTimeout: timeout,
		Version:     "test",
	})

	router := mux.NewRouter()
	r.RegisterRoutes(router)
	return r, db, router
}

func postJSON(router *mux.Router, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChatMissingMessage(t *testing.T) {
	_, _, router := newTestRouter(t, &testProvider{})
	w := postJSON(router, "/api/v1/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatInvalidJSON(t *testing.T) {
	_, _, router := newTestRouter(t, &testProvider{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader("{nope"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatNewSession(t *testing.T) {
	prov := &testProvider{chatContent: "hello from the model"}
	_, db, router := newTestRouter(t, prov)

	w := postJSON(router, "/api/v1/chat", ChatRequest{UserID: "u1", Message: "hi there"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.SessionCreated)
	assert.Equal(t, "hello from the model", resp.Message)
	require.NotEmpty(t, resp.SessionID)

	// Persistence runs in the background; both sides of the turn land
	// in the log and the summary is re-condensed.
	require.Eventually(t, func() bool {
		msgs, err := db.GetMessages(resp.SessionID)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs, err := db.GetMessages(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, provider.RoleUser, msgs[0].Role)
	assert.Equal(t, provider.RoleAssistant, msgs[1].Role)

	require.Eventually(t, func() bool {
		sum, err := db.GetSummary(resp.SessionID)
		return err == nil && sum != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatUnknownSession(t *testing.T) {
	_, _, router := newTestRouter(t, &testProvider{chatContent: "x"})
	w := postJSON(router, "/api/v1/chat", ChatRequest{SessionID: "missing", Message: "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatProviderError(t *testing.T) {
	prov := &testProvider{chatErr: provider.NewError(provider.ErrCodeServiceUnavailable, "down", "test", true)}
	_, _, router := newTestRouter(t, prov)

	w := postJSON(router, "/api/v1/chat", ChatRequest{Message: "hi"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func parseSSE(t *testing.T, body string) []ChatStreamEvent {
	t.Helper()
	var events []ChatStreamEvent
	for _, line := range strings.Split(body, "\n") {
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var ev ChatStreamEvent
		require.NoError(t, json.Unmarshal([]byte(data), &ev))
		events = append(events, ev)
	}
	return events
}

func TestChatStream(t *testing.T) {
	prov := &testProvider{
		chatContent: "summary text",
		streamEvts: []provider.ChatEvent{
			{Type: provider.EventTypeContent, Delta: "Hel"},
			{Type: provider.EventTypeContent, Delta: "lo"},
			{Type: provider.EventTypeDone, FinishReason: provider.FinishReasonStop},
		},
	}
	_, db, router := newTestRouter(t, prov)

	w := postJSON(router, "/api/v1/chat/stream", ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	sessionID := w.Header().Get("X-Session-ID")
	require.NotEmpty(t, sessionID)

	events := parseSSE(t, w.Body.String())
	require.GreaterOrEqual(t, len(events), 4)

	// Session announcement precedes any content.
	assert.Equal(t, StreamEventSession, events[0].Type)
	assert.Equal(t, sessionID, events[0].SessionID)

	var content string
	for _, ev := range events {
		if ev.Type == StreamEventContent {
			content += ev.Delta
		}
	}
	assert.Equal(t, "Hello", content)

	last := events[len(events)-1]
	assert.Equal(t, StreamEventDone, last.Type)
	assert.Equal(t, sessionID, last.SessionID)

	// Persistence runs in the background after done.
	require.Eventually(t, func() bool {
		msgs, err := db.GetMessages(sessionID)
		return err == nil && len(msgs) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs, _ := db.GetMessages(sessionID)
	assert.Equal(t, "Hello", msgs[1].Content)
}

func TestChatStreamMidStreamError(t *testing.T) {
	prov := &testProvider{
		streamEvts: []provider.ChatEvent{
			{Type: provider.EventTypeContent, Delta: "partial"},
			{Type: provider.EventTypeError, Error: provider.NewError(provider.ErrCodeServiceUnavailable, "backend died", "test", true)},
		},
	}
	_, db, router := newTestRouter(t, prov)

	w := postJSON(router, "/api/v1/chat/stream", ChatRequest{Message: "hi"})
	sessionID := w.Header().Get("X-Session-ID")

	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	assert.Equal(t, StreamEventError, last.Type)
	assert.Contains(t, last.Error, "backend died")

	// User message persisted at assembly, assistant message not.
	time.Sleep(50 * time.Millisecond)
	msgs, err := db.GetMessages(sessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, provider.RoleUser, msgs[0].Role)
}

// stalledProvider returns a stream channel that never delivers, like a
// backend that accepted the request and went silent.
type stalledProvider struct{}

func (p *stalledProvider) Name() string { return "stalled" }

func (p *stalledProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{Content: "summary"}, nil
}

func (p *stalledProvider) Stream(ctx context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	return make(chan provider.ChatEvent), nil
}

func TestChatStreamTurnTimeout(t *testing.T) {
	_, db, router := newTestRouterWithTimeout(t, &stalledProvider{}, 100*time.Millisecond)

	start := time.Now()
	w := postJSON(router, "/api/v1/chat/stream", ChatRequest{Message: "hi"})
	require.Less(t, time.Since(start), 2*time.Second, "handler did not respect the turn deadline")

	sessionID := w.Header().Get("X-Session-ID")
	require.NotEmpty(t, sessionID)

	events := parseSSE(t, w.Body.String())
	last := events[len(events)-1]
	assert.Equal(t, StreamEventError, last.Type)
	assert.Contains(t, last.Error, "timed out")

	// Only the user message was persisted; the turn never completed.
	msgs, err := db.GetMessages(sessionID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, provider.RoleUser, msgs[0].Role)
}

func TestChatConcurrentTurnsSameSession(t *testing.T) {
	prov := &testProvider{chatContent: "reply"}
	_, db, router := newTestRouter(t, prov)

	sess, err := db.CreateSession("u1", "shared")
	require.NoError(t, err)
	sessionID := sess.ID

	const turns = 4
	var wg sync.WaitGroup
	codes := make([]int, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := postJSON(router, "/api/v1/chat", ChatRequest{SessionID: sessionID, Message: fmt.Sprintf("turn %d", i)})
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "turn %d", i)
	}

	// Every turn lands both its messages; summary is whatever merge wrote last.
	require.Eventually(t, func() bool {
		msgs, err := db.GetMessages(sessionID)
		return err == nil && len(msgs) == 2*turns
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		sum, err := db.GetSummary(sessionID)
		return err == nil && sum != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatStreamTruncatedWithoutDone(t *testing.T) {
	prov := &testProvider{
		streamEvts: []provider.ChatEvent{
			{Type: provider.EventTypeContent, Delta: "partial"},
		},
	}
	_, db, router := newTestRouter(t, prov)

	w := postJSON(router, "/api/v1/chat/stream", ChatRequest{Message: "hi"})
	sessionID := w.Header().Get("X-Session-ID")

	events := parseSSE(t, w.Body.String())
	assert.Equal(t, StreamEventError, events[len(events)-1].Type)

	time.Sleep(50 * time.Millisecond)
	msgs, _ := db.GetMessages(sessionID)
	assert.Len(t, msgs, 1)
}
