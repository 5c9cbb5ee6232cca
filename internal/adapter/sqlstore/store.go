// Package sqlstore implements the domain repositories on top of the SQL executor.
package sqlstore

import (
	"errors"
	"fmt"

	"mfgrecords/internal/db"
	"mfgrecords/internal/domain"
)

// DB wraps the executor and implements domain.UserRepository directly. The
// other repositories are thin wrappers created with the New* helpers.
type DB struct {
	exec *db.Executor
}

// New wraps an open executor.
func New(e *db.Executor) *DB {
	return &DB{exec: e}
}

// translate maps executor failures onto domain errors while keeping the
// original chain intact.
func translate(err error) error {
	if errors.Is(err, db.ErrDuplicate) {
		return fmt.Errorf("%w: %w", domain.ErrDuplicate, err)
	}
	return err
}
