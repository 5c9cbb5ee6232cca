package app

import (
	"errors"

	"mfgrecords/internal/domain"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUnauthorized indicates that the request carries no usable authenticated session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates that the user lacks the role for the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrCSRF indicates a missing or mismatched anti-forgery token.
	ErrCSRF = errors.New("invalid csrf token")
	// ErrSessionExpired indicates that the session was idle longer than the timeout.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated indicates an operation that requires a logged-in user.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSetupComplete indicates that initial setup was attempted after users exist.
	ErrSetupComplete = errors.New("users already exist")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUnexpected indicates an internal fault that was contained.
	ErrUnexpected = errors.New("unexpected failure")

	ErrNotFound  = domain.ErrNotFound
	ErrDuplicate = domain.ErrDuplicate
)
