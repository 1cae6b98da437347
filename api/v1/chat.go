package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"parley/internal/gateway/handlers"
	"parley/internal/provider"
	"parley/internal/storage"
	"parley/internal/turn"
	"parley/pkg/logger"
)

// HandleChat handles synchronous chat requests. The assistant response
// is returned whole once the model finishes.
func (r *Router) HandleChat(w http.ResponseWriter, req *http.Request) {
	chatReq, ok := r.decodeChatRequest(w, req)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), r.turnTimeout)
	defer cancel()

	t, ok := r.assemble(ctx, w, chatReq)
	if !ok {
		return
	}

	resp, err := r.provider.Chat(ctx, provider.ChatRequest{
		Model:    r.model,
		Messages: t.Messages,
	})
	if err != nil {
		status, code := statusForProviderError(err)
		handlers.SendError(w, status, code, err.Error())
		return
	}

	// The answer is already known; the summary merge must not delay it.
	go r.persister.CompleteTurn(t, resp.Content)

	handlers.SendJSON(w, http.StatusOK, ChatResponse{
		SessionID:      t.SessionID,
		SessionCreated: t.SessionCreated,
		Message:        resp.Content,
	})
}

// HandleChatStream handles streaming chat requests using SSE. The
// session id is announced in the X-Session-ID header and a leading
// session event before the first content chunk, so clients starting a
// new conversation learn their session immediately.
func (r *Router) HandleChatStream(w http.ResponseWriter, req *http.Request) {
	chatReq, ok := r.decodeChatRequest(w, req)
	if !ok {
		return
	}

	// The whole turn, assembly and stream included, runs under the same
	// wall-clock ceiling as the synchronous path. Cancellation also
	// unblocks the provider's stream parser when the turn is abandoned.
	ctx, cancel := context.WithTimeout(req.Context(), r.turnTimeout)
	defer cancel()

	// Assembly errors are still plain JSON; SSE starts only once the
	// turn is viable.
	t, ok := r.assemble(ctx, w, chatReq)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Session-ID", t.SessionID)

	writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventSession, SessionID: t.SessionID})

	events, err := r.provider.Stream(ctx, provider.ChatRequest{
		Model:    r.model,
		Messages: t.Messages,
		Stream:   true,
	})
	if err != nil {
		writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventError, Error: err.Error()})
		return
	}

	var assistant string
	completed := false

loop:
	for {
		select {
		case <-ctx.Done():
			logger.Warn().Str("session_id", t.SessionID).Msg("streaming turn deadline exceeded")
			writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventError, Error: "turn timed out"})
			return
		case event, open := <-events:
			if !open {
				break loop
			}
			switch event.Type {
			case provider.EventTypeContent:
				assistant += event.Delta
				if !writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventContent, Delta: event.Delta}) {
					// Client went away; partial output is not persisted.
					return
				}
			case provider.EventTypeError:
				logger.Error().Err(event.Error).Str("session_id", t.SessionID).Msg("stream failed")
				writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventError, Error: event.Error.Error()})
				return
			case provider.EventTypeDone:
				completed = true
			}
		}
	}

	if !completed {
		// Stream ended without a done event; treat as failure, keep the
		// already-emitted partial output unpersisted.
		writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventError, Error: "stream ended unexpectedly"})
		return
	}

	// Persist off the request context so client disconnects after done
	// cannot abort the write.
	go r.persister.CompleteTurn(t, assistant)

	writeSSE(w, flusher, ChatStreamEvent{Type: StreamEventDone, SessionID: t.SessionID})
}

func (r *Router) decodeChatRequest(w http.ResponseWriter, req *http.Request) (ChatRequest, bool) {
	var chatReq ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&chatReq); err != nil {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return chatReq, false
	}
	if chatReq.Message == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Message is required")
		return chatReq, false
	}
	if r.assembler == nil || r.provider == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Chat backend not available")
		return chatReq, false
	}
	return chatReq, true
}

func (r *Router) assemble(ctx context.Context, w http.ResponseWriter, chatReq ChatRequest) (*turn.Turn, bool) {
	t, err := r.assembler.Assemble(ctx, chatReq.UserID, chatReq.SessionID, chatReq.Message)
	if err != nil {
		switch {
		case errors.Is(err, turn.ErrEmptyInput):
			handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Message is required")
		case errors.Is(err, storage.ErrNotFound):
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
		default:
			logger.Error().Err(err).Msg("turn assembly failed")
			handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to assemble context")
		}
		return nil, false
	}
	return t, true
}

// writeSSE writes one SSE data event. Returns false if the client is gone.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event ChatStreamEvent) bool {
	data, _ := json.Marshal(event)
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		logger.Debug().Err(err).Msg("SSE write failed")
		return false
	}
	flusher.Flush()
	return true
}

// statusForProviderError maps a provider error onto an HTTP status and
// API error code.
func statusForProviderError(err error) (int, string) {
	switch provider.CodeOf(err) {
	case provider.ErrCodeInvalidRequest:
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case provider.ErrCodeAuthFailed:
		return http.StatusBadGateway, ErrCodeProviderError
	case provider.ErrCodeModelNotFound:
		return http.StatusBadGateway, ErrCodeProviderError
	case provider.ErrCodeRateLimited:
		return http.StatusTooManyRequests, ErrCodeProviderError
	case provider.ErrCodeTimeout:
		return http.StatusGatewayTimeout, ErrCodeGatewayTimeout
	case provider.ErrCodeServiceUnavailable, provider.ErrCodeNetworkError:
		return http.StatusBadGateway, ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeProviderError
	}
}
