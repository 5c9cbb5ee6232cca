package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrFailed is matched by every backend failure returned from this package.
	ErrFailed = errors.New("db: statement failed")
	// ErrDuplicate is additionally matched when a unique constraint rejected the statement.
	ErrDuplicate = errors.New("db: duplicate key")
)

// Failure is the uniform error value for backend failures.
type Failure struct {
	Op        string
	Table     string
	Err       error
	Duplicate bool
}

func (f *Failure) Error() string {
	if f.Table != "" {
		return "db: " + f.Op + " " + f.Table + ": " + f.Err.Error()
	}
	return "db: " + f.Op + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() []error {
	if f.Duplicate {
		return []error{ErrFailed, ErrDuplicate, f.Err}
	}
	return []error{ErrFailed, f.Err}
}

const pgUniqueViolation = "23505"

// IsDuplicate reports whether err is a unique-constraint violation from any
// supported driver.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}
	return false
}
