package domain

import (
	"context"
	"time"
)

// Session is the per-visitor state keyed by an opaque cookie value. A zero
// UserID means the visitor is anonymous.
type Session struct {
	ID           string        `json:"id"`
	UserID       int64         `json:"user_id"`
	Username     string        `json:"username,omitempty"`
	Role         Role          `json:"role,omitempty"`
	CSRFToken    string        `json:"csrf_token,omitempty"`
	LastActivity time.Time     `json:"last_activity"`
	Flash        *FlashMessage `json:"flash,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Authenticated reports whether a user is bound to the session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

// SessionStore persists sessions. Get returns nil, nil for unknown ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	DeleteIdle(ctx context.Context, before time.Time) (int64, error)
}
