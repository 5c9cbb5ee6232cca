package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"

	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

// DefaultSessionTimeout is the idle window after which a session is torn down.
const DefaultSessionTimeout = 30 * time.Minute

// SessionService owns the session lifecycle: start, login rotation, CSRF
// tokens, idle timeout and logout.
type SessionService struct {
	store   domain.SessionStore
	timeout time.Duration
	log     logging.Logger
	now     func() time.Time
}

// NewSessionService creates a session service. A non-positive timeout uses
// DefaultSessionTimeout.
func NewSessionService(store domain.SessionStore, timeout time.Duration, log logging.Logger) *SessionService {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if log == nil {
		log = logging.Nop()
	}
	return &SessionService{
		store:   store,
		timeout: timeout,
		log:     log.With("component", "session"),
		now:     time.Now,
	}
}

// Timeout returns the idle timeout.
func (s *SessionService) Timeout() time.Duration {
	return s.timeout
}

// Start creates and persists a new anonymous session.
func (s *SessionService) Start(ctx context.Context) (*domain.Session, error) {
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &domain.Session{ID: id, LastActivity: now, CreatedAt: now}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Load returns the stored session for id, or nil when it does not exist.
func (s *SessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, nil
	}
	return s.store.Get(ctx, id)
}

// Save persists the session as is.
func (s *SessionService) Save(ctx context.Context, sess *domain.Session) error {
	return s.store.Save(ctx, sess)
}

// Authenticate binds user to a brand-new session and destroys old, so a
// session id observed before login is worthless afterwards.
func (s *SessionService) Authenticate(ctx context.Context, old *domain.Session, user *domain.User) (*domain.Session, error) {
	if old != nil && old.ID != "" {
		if err := s.store.Delete(ctx, old.ID); err != nil {
			s.log.Warn(ctx, "failed to delete pre-login session", "err", err)
		}
	}
	id, err := generateToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &domain.Session{
		ID:           id,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         user.Role,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// Destroy deletes the session and clears all of its state in place.
func (s *SessionService) Destroy(ctx context.Context, sess *domain.Session) error {
	if sess == nil {
		return nil
	}
	id := sess.ID
	*sess = domain.Session{}
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, id)
}

// GenerateCSRFToken returns the session's token, creating and persisting one
// on first use.
func (s *SessionService) GenerateCSRFToken(ctx context.Context, sess *domain.Session) (string, error) {
	if sess.CSRFToken != "" {
		return sess.CSRFToken, nil
	}
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	sess.CSRFToken = token
	if err := s.store.Save(ctx, sess); err != nil {
		sess.CSRFToken = ""
		return "", fmt.Errorf("save session: %w", err)
	}
	return token, nil
}

// ValidateCSRFToken compares candidate with the session token in constant
// time. A session without a token never validates.
func (s *SessionService) ValidateCSRFToken(sess *domain.Session, candidate string) bool {
	if sess == nil || sess.CSRFToken == "" {
		return false
	}
	return ConstantTimeCompare(sess.CSRFToken, candidate)
}

// CheckTimeout tears the session down and returns false once it has been idle
// longer than the timeout. Otherwise it refreshes LastActivity and returns true.
func (s *SessionService) CheckTimeout(ctx context.Context, sess *domain.Session) bool {
	if sess == nil {
		return false
	}
	now := s.now()
	if now.Sub(sess.LastActivity) > s.timeout {
		if err := s.Destroy(ctx, sess); err != nil {
			s.log.Error(ctx, "failed to destroy expired session", "err", err)
		}
		return false
	}
	sess.LastActivity = now
	if err := s.store.Save(ctx, sess); err != nil {
		s.log.Error(ctx, "failed to refresh session activity", "err", err)
	}
	return true
}

// SweepIdle deletes every stored session idle longer than the timeout.
func (s *SessionService) SweepIdle(ctx context.Context) (int64, error) {
	return s.store.DeleteIdle(ctx, s.now().Add(-s.timeout))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
