package storage

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of a session's append-only log. Messages are
// immutable once appended and ordered by created_at (id breaks ties).
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendMessage appends a single message to a session's log.
func (db *DB) AppendMessage(sessionID, role, content string) (*Message, error) {
	m := newMessage(sessionID, role, content)
	_, err := db.Exec(
		"INSERT INTO messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	_, _ = db.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", m.CreatedAt, sessionID)
	return m, nil
}

// GetMessages returns a session's full ordered history.
func (db *DB) GetMessages(sessionID string) ([]*Message, error) {
	rows, err := db.Query(
		"SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC",
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of messages in a session.
func (db *DB) CountMessages(sessionID string) (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&count)
	return count, err
}

func newMessage(sessionID, role, content string) *Message {
	return &Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}
