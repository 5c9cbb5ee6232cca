package app

import (
	"context"
	"time"

	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

// FlashService stores a single pending message per session.
type FlashService struct {
	sessions domain.SessionStore
	log      logging.Logger
	now      func() time.Time
}

// NewFlashService creates a flash service over the session store.
func NewFlashService(sessions domain.SessionStore, log logging.Logger) *FlashService {
	if log == nil {
		log = logging.Nop()
	}
	return &FlashService{sessions: sessions, log: log.With("component", "flash"), now: time.Now}
}

// Set replaces any pending message and persists the session.
func (f *FlashService) Set(ctx context.Context, sess *domain.Session, kind domain.FlashKind, text string) error {
	sess.Flash = &domain.FlashMessage{Kind: kind.Normalize(), Text: text, CreatedAt: f.now()}
	return f.sessions.Save(ctx, sess)
}

// Get returns the pending message, or nil, and clears it. The cleared session
// is persisted before Get returns.
func (f *FlashService) Get(ctx context.Context, sess *domain.Session) *domain.FlashMessage {
	if sess == nil || sess.Flash == nil {
		return nil
	}
	msg := sess.Flash
	sess.Flash = nil
	if err := f.sessions.Save(ctx, sess); err != nil {
		f.log.Error(ctx, "failed to persist cleared flash", "err", err)
	}
	return msg
}
