package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"parley/internal/gateway/handlers"
	"parley/internal/storage"
	"parley/pkg/logger"
)

const defaultSessionListLimit = 50

// HandleListSessions lists sessions ordered by most recent activity.
// Supports user_id, limit and offset query parameters.
func (r *Router) HandleListSessions(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	limit := defaultSessionListLimit
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	sessions, err := r.db.ListSessions(query.Get("user_id"), limit, offset)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list sessions")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to list sessions")
		return
	}

	resp := SessionListResponse{Sessions: make([]SessionInfo, 0, len(sessions))}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sessionInfo(sess))
	}
	handlers.SendJSON(w, http.StatusOK, resp)
}

// HandleGetSession returns a single session including its summary.
func (r *Router) HandleGetSession(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	sess, err := r.db.GetSession(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
			return
		}
		logger.Error().Err(err).Str("session_id", id).Msg("failed to get session")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to get session")
		return
	}

	info := sessionInfo(sess)
	if count, err := r.db.CountMessages(id); err == nil {
		info.MessageCount = count
	}

	handlers.SendJSON(w, http.StatusOK, info)
}

// HandleRenameSession updates a session's title.
func (r *Router) HandleRenameSession(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	var body RenameSessionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Title is required")
		return
	}

	if err := r.db.RenameSession(id, body.Title); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
			return
		}
		logger.Error().Err(err).Str("session_id", id).Msg("failed to rename session")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to rename session")
		return
	}

	sess, err := r.db.GetSession(id)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to load renamed session")
		return
	}
	handlers.SendJSON(w, http.StatusOK, sessionInfo(sess))
}

// HandleDeleteSession removes a session and all of its messages.
func (r *Router) HandleDeleteSession(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if err := r.db.DeleteSession(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "Session not found")
			return
		}
		logger.Error().Err(err).Str("session_id", id).Msg("failed to delete session")
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, "Failed to delete session")
		return
	}

	handlers.SendNoContent(w)
}

func sessionInfo(sess *storage.Session) SessionInfo {
	return SessionInfo{
		ID:        sess.ID,
		UserID:    sess.UserID,
		Title:     sess.Title,
		Summary:   sess.Summary,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}
