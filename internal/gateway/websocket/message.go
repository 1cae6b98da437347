// Package websocket provides WebSocket hub and client management for
// pushing session updates to connected UIs.
package websocket

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// BroadcastMessage wraps a message with its target session.
type BroadcastMessage struct {
	Session string
	Data    []byte
}

// Message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"

	// TypeSessionUpdated is pushed after a turn is persisted so session
	// lists and open transcripts can refresh.
	TypeSessionUpdated = "session_updated"
)
