// Package v1 implements the HTTP API.
package v1

import "time"

// Error codes returned in error response bodies.
const (
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeProviderError      = "PROVIDER_ERROR"
	ErrCodeGatewayTimeout     = "GATEWAY_TIMEOUT"
)

// ChatRequest is the body of POST /chat and POST /chat/stream.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	SessionID      string `json:"session_id"`
	SessionCreated bool   `json:"session_created,omitempty"`
	Message        string `json:"message"`
}

// ChatStreamEvent is one SSE event on POST /chat/stream.
type ChatStreamEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Delta     string `json:"delta,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Stream event types.
const (
	StreamEventSession = "session"
	StreamEventContent = "content"
	StreamEventError   = "error"
	StreamEventDone    = "done"
)

// SessionInfo describes a session in list and get responses.
// MessageCount is populated only on single-session reads.
type SessionInfo struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	Title        string    `json:"title"`
	Summary      string    `json:"summary,omitempty"`
	MessageCount int       `json:"message_count,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// RenameSessionRequest is the body of PATCH /sessions/{id}.
type RenameSessionRequest struct {
	Title string `json:"title"`
}

// MessageInfo describes one message in a session transcript.
type MessageInfo struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageListResponse is the body of GET /sessions/{id}/messages.
type MessageListResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []MessageInfo `json:"messages"`
}

// ComponentHealth describes one subsystem in the health response.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Uptime     int64                      `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}
