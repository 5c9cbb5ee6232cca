// Package db is a thin, generic, parameter-bound SQL executor.
//
// Statements are written with `?` placeholders and rebound for the backend.
// Backend failures never panic: they are logged and returned wrapped in
// ErrFailed. Programmer errors (no columns, no filter, malformed identifiers)
// panic.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"mfgrecords/internal/logging"
)

// DBTX is the subset of database/sql shared by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier is the statement surface shared by Executor and Tx. Repositories
// accept a Querier so they can run inside or outside a transaction.
type Querier interface {
	Insert(ctx context.Context, table string, cols Columns) (int64, error)
	Update(ctx context.Context, table string, cols Columns, where string, whereArgs ...any) (int64, error)
	Delete(ctx context.Context, table string, where string, args ...any) (int64, error)
	GetOne(ctx context.Context, query string, args ...any) (Row, error)
	GetAll(ctx context.Context, query string, args ...any) ([]Row, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
}

// Observer receives one call per executed statement.
type Observer interface {
	ObserveStatement(op string, err error)
}

// Options configures Open.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Logger          logging.Logger
	Observer        Observer
}

// Executor runs statements against a connection pool.
type Executor struct {
	stmts
	sql *sql.DB
}

var (
	_ Querier = (*Executor)(nil)
	_ Querier = (*Tx)(nil)
)

// Open connects to the backend and pings it. A failure here is meant to be
// fatal for the caller.
func Open(ctx context.Context, opts Options) (*Executor, error) {
	d, err := DialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	dsn := opts.DSN
	if d.Name == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	s, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		s.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		s.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		s.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.PingContext(pingCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return New(s, d, opts.Logger, opts.Observer), nil
}

// New wraps an already opened pool.
func New(s *sql.DB, d Dialect, log logging.Logger, obs Observer) *Executor {
	if log == nil {
		log = logging.Nop()
	}
	e := &Executor{sql: s}
	e.stmts = stmts{
		q:       s,
		dialect: d,
		log:     log.With("component", "db"),
		obs:     obs,
		pin: func(ctx context.Context) (DBTX, func() error, error) {
			c, err := s.Conn(ctx)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		},
	}
	return e
}

// Close closes the pool.
func (e *Executor) Close() error {
	return e.sql.Close()
}

// SQL exposes the pool for migrations and health checks.
func (e *Executor) SQL() *sql.DB {
	return e.sql
}

// Dialect returns the backend dialect.
func (e *Executor) Dialect() Dialect {
	return e.dialect
}

// Ping checks backend reachability.
func (e *Executor) Ping(ctx context.Context) error {
	return e.sql.PingContext(ctx)
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
