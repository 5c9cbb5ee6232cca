// Package app holds the application services and business logic.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mfgrecords/internal/cache"
	"mfgrecords/internal/domain"
	"mfgrecords/internal/logging"
)

const userCacheTTL = 5 * time.Minute

// ClientInfo identifies the remote end of a request for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// AuthService handles authentication on top of the session service.
type AuthService struct {
	users    domain.UserRepository
	sessions *SessionService
	hasher   PasswordHasher
	cache    domain.CacheStore
	activity *ActivityLogger
	log      logging.Logger
	now      func() time.Time
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions *SessionService, hasher PasswordHasher, store domain.CacheStore, activity *ActivityLogger, log logging.Logger) *AuthService {
	if store == nil {
		store = cache.Nop{}
	}
	if log == nil {
		log = logging.Nop()
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		cache:    store,
		activity: activity,
		log:      log.With("component", "auth"),
		now:      time.Now,
	}
}

// Login verifies credentials and returns a fresh authenticated session that
// replaces old.
func (s *AuthService) Login(ctx context.Context, old *domain.Session, username, password string, client ClientInfo) (*domain.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil || !user.Active {
		// Burn comparable time so unknown users are not distinguishable.
		s.hasher.Verify(password, dummyHash)
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Authenticate(ctx, old, user)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, "login", "", client)
	return sess, nil
}

// LoginWithUser creates a session for an already authenticated user (e.g. via
// SSO). Unknown users are provisioned with the viewer role and no password.
func (s *AuthService) LoginWithUser(ctx context.Context, old *domain.Session, username string, client ClientInfo) (*domain.Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		user, err = s.users.Create(ctx, &domain.User{
			Username:  username,
			Role:      domain.RoleViewer,
			Active:    true,
			CreatedAt: s.now(),
		})
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost a provisioning race; the other request created the user.
			user, err = s.users.GetByUsername(ctx, username)
		}
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrForbidden
	}

	sess, err := s.sessions.Authenticate(ctx, old, user)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID, "login", "sso", client)
	return sess, nil
}

// Logout records the logout and destroys the session.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session, client ClientInfo) error {
	if sess.Authenticated() {
		s.audit(ctx, sess.UserID, "logout", "", client)
		_ = s.cache.Delete(ctx, userCacheKey(sess.UserID))
	}
	return s.sessions.Destroy(ctx, sess)
}

// CurrentUser returns the session's user, served from cache when possible.
func (s *AuthService) CurrentUser(ctx context.Context, sess *domain.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	user, err := cache.Remember(ctx, s.cache, userCacheKey(sess.UserID), userCacheTTL, func(ctx context.Context) (*domain.User, error) {
		return s.users.GetByID(ctx, sess.UserID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// NeedsSetup reports whether no users exist yet.
func (s *AuthService) NeedsSetup(ctx context.Context) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// CreateInitialUser creates the first user, as an admin, if no users exist.
func (s *AuthService) CreateInitialUser(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	needed, err := s.NeedsSetup(ctx)
	if err != nil {
		return err
	}
	if !needed {
		return ErrSetupComplete
	}
	return s.createAdmin(ctx, username, password)
}

// EnsureBootstrapAdmin creates an admin account with the given credentials
// when enabled is set and the username is not taken. Callers must only enable
// it outside production.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, enabled bool, username, password string) error {
	if !enabled {
		return nil
	}
	if username == "" || password == "" {
		return fmt.Errorf("%w: bootstrap admin needs username and password", ErrValidation)
	}
	_, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := s.createAdmin(ctx, username, password); err != nil {
		return err
	}
	s.log.Warn(ctx, "bootstrap admin account created", "username", username)
	return nil
}

func (s *AuthService) createAdmin(ctx context.Context, username, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	_, err = s.users.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    s.now(),
	})
	return err
}

func (s *AuthService) audit(ctx context.Context, userID int64, action, details string, client ClientInfo) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Log(ctx, domain.ActivityRecord{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	})
}

func userCacheKey(id int64) string {
	return fmt.Sprintf("user_%d", id)
}

// dummyHash is a valid bcrypt hash of a random string, used to equalize
// timing for unknown usernames.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z4ivVsl3I4Lk4wXvV3VqKp2e"
