package v1

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"parley/internal/gateway/handlers"
	"parley/internal/storage"
	"parley/internal/turn"
	"parley/pkg/logger"
)

// HandleGetMessages returns a session's full transcript in
// chronological order. Roles stored by older schema versions are
// normalized on the way out.
func (r *Router) HandleGetMessages(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if id == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Session id is required")
		return
	}

	if _, err := r.db.GetSession(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
			return
		}
		logger.Error().Err(err).Str("session_id", id).Msg("failed to get session")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get session")
		return
	}

	msgs, err := r.db.GetMessages(id)
	if err != nil {
		logger.Error().Err(err).Str("session_id", id).Msg("failed to load messages")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load messages")
		return
	}

	resp := MessageListResponse{
		SessionID: id,
		Messages:  make([]MessageInfo, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, MessageInfo{
			ID:        m.ID,
			Role:      turn.CanonicalRole(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	handlers.SendJSON(w, http.StatusOK, resp)
}
