package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Session is a conversation container. Summary is a rolling compressed
// digest of all messages not currently inside the active window; it is
// the only field the context manager mutates after creation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateSession inserts a new session owned by userID.
func (db *DB) CreateSession(userID, title string) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		"INSERT INTO sessions (id, user_id, title, summary, created_at, updated_at) VALUES (?, ?, ?, '', ?, ?)",
		s.ID, s.UserID, s.Title, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession fetches a session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	var s Session
	err := db.QueryRow(
		"SELECT id, user_id, title, summary, created_at, updated_at FROM sessions WHERE id = ?",
		id,
	).Scan(&s.ID, &s.UserID, &s.Title, &s.Summary, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns sessions for a user ordered by recency. An empty
// userID lists all sessions.
func (db *DB) ListSessions(userID string, limit, offset int) ([]*Session, error) {
	query := "SELECT id, user_id, title, summary, created_at, updated_at FROM sessions"
	args := []any{}

	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY updated_at DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	if offset > 0 {
		query += " OFFSET ?"
		args = append(args, offset)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.Summary, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, &s)
	}

	return sessions, rows.Err()
}

// RenameSession updates a session's title.
func (db *DB) RenameSession(id, title string) error {
	result, err := db.Exec(
		"UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?",
		title, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// GetSummary returns the persisted rolling summary for a session.
func (db *DB) GetSummary(id string) (string, error) {
	var summary string
	err := db.QueryRow("SELECT summary FROM sessions WHERE id = ?", id).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return summary, nil
}

// SetSummary replaces the persisted summary. Concurrent turns on the same
// session race here with last-writer-wins semantics.
func (db *DB) SetSummary(id, summary string) error {
	result, err := db.Exec(
		"UPDATE sessions SET summary = ?, updated_at = ? WHERE id = ?",
		summary, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// DeleteSession removes a session and its message log in one
// transaction, so a partial delete can never orphan messages.
func (db *DB) DeleteSession(id string) error {
	return db.WithTx(func(tx *Tx) error {
		if _, err := tx.Exec("DELETE FROM messages WHERE session_id = ?", id); err != nil {
			return err
		}
		result, err := tx.Exec("DELETE FROM sessions WHERE id = ?", id)
		if err != nil {
			return err
		}
		return requireAffected(result)
	})
}

// PruneEmptySessions deletes sessions created before cutoff that never
// received a message. Returns the number of sessions removed.
func (db *DB) PruneEmptySessions(cutoff time.Time) (int64, error) {
	result, err := db.Exec(`
		DELETE FROM sessions
		WHERE created_at < ?
		  AND id NOT IN (SELECT DISTINCT session_id FROM messages)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
