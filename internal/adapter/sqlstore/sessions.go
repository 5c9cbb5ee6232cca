package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mfgrecords/internal/domain"
)

// SessionStore persists sessions as JSON documents in the sessions table.
type SessionStore struct {
	db *DB
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore wraps a DB as a SessionStore.
func NewSessionStore(d *DB) *SessionStore {
	return &SessionStore{db: d}
}

// Get returns the session, or nil when it does not exist.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	row, err := s.db.exec.GetOne(ctx, "SELECT data FROM sessions WHERE id = ?", id)
	if err != nil || row == nil {
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal([]byte(row.String("data")), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save inserts or replaces the session.
func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.exec.Exec(ctx,
		`INSERT INTO sessions (id, user_id, data, last_activity, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id, data = excluded.data, last_activity = excluded.last_activity`,
		sess.ID, sess.UserID, string(data), sess.LastActivity.UTC(), sess.CreatedAt.UTC(),
	)
	return err
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.exec.Delete(ctx, "sessions", "id = ?", id)
	return err
}

// DeleteIdle removes sessions whose last activity is before the cutoff.
func (s *SessionStore) DeleteIdle(ctx context.Context, before time.Time) (int64, error) {
	return s.db.exec.Delete(ctx, "sessions", "last_activity < ?", before.UTC())
}
