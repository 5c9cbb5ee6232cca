package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"mfgrecords/internal/logging"
)

// Columns maps column names to the values bound for them. Columns are bound
// in sorted name order.
type Columns map[string]any

func (c Columns) split() ([]string, []any) {
	names := make([]string, 0, len(c))
	for name := range c {
		mustIdent(name)
		names = append(names, name)
	}
	sort.Strings(names)
	args := make([]any, len(names))
	for i, name := range names {
		args[i] = c[name]
	}
	return names, args
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// mustIdent panics unless s is a plain (optionally schema-qualified)
// identifier. Identifiers come from code, never from requests.
func mustIdent(s string) {
	if !identRe.MatchString(s) {
		panic(fmt.Sprintf("db: invalid identifier %q", s))
	}
}

type stmts struct {
	q       DBTX
	dialect Dialect
	log     logging.Logger
	obs     Observer

	// pin returns a handle bound to one physical connection, so that
	// lastval() observes only this session's inserts.
	pin func(ctx context.Context) (DBTX, func() error, error)
}

// Insert adds one row and returns the backend-assigned identifier. The
// identifier is only meaningful for tables with a generated key; on postgres
// use Exec for other tables inside a transaction, since a failed lastval()
// aborts it.
func (s *stmts) Insert(ctx context.Context, table string, cols Columns) (int64, error) {
	mustIdent(table)
	if len(cols) == 0 {
		panic("db: insert into " + table + " without columns")
	}
	names, args := cols.split()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(names, ", "), placeholders(len(names)))

	conn, release, err := s.pin(ctx)
	if err != nil {
		return 0, s.fail(ctx, "insert", table, query, err)
	}
	defer func() { _ = release() }()

	res, err := conn.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, s.fail(ctx, "insert", table, query, err)
	}
	s.observe("insert", nil)

	id, err := s.dialect.lastInsertID(ctx, conn, res)
	if err != nil {
		s.log.Warn(ctx, "insert id unavailable", "table", table, "err", err)
		return 0, nil
	}
	return id, nil
}

// Update sets cols on the rows matching where. Set values are bound before
// whereArgs. where is raw SQL supplied by code; request data must only ever
// reach it through whereArgs.
func (s *stmts) Update(ctx context.Context, table string, cols Columns, where string, whereArgs ...any) (int64, error) {
	mustIdent(table)
	if len(cols) == 0 {
		panic("db: update of " + table + " without columns")
	}
	if strings.TrimSpace(where) == "" {
		panic("db: update of " + table + " without a filter")
	}
	names, args := cols.split()
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = name + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), where)
	return s.exec(ctx, "update", table, query, append(args, whereArgs...))
}

// Delete removes the rows matching where.
func (s *stmts) Delete(ctx context.Context, table string, where string, args ...any) (int64, error) {
	mustIdent(table)
	if strings.TrimSpace(where) == "" {
		panic("db: delete from " + table + " without a filter")
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
	return s.exec(ctx, "delete", table, query, args)
}

// Exec runs an arbitrary statement and returns the affected row count.
func (s *stmts) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return s.exec(ctx, "exec", "", query, args)
}

func (s *stmts) exec(ctx context.Context, op, table, query string, args []any) (int64, error) {
	res, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return 0, s.fail(ctx, op, table, query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.fail(ctx, op, table, query, err)
	}
	s.observe(op, nil)
	return n, nil
}

// GetOne returns the first row of query, or nil when there is none.
func (s *stmts) GetOne(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := s.query(ctx, query, args, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// GetAll returns every row of query, fully read before returning.
func (s *stmts) GetAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	return s.query(ctx, query, args, 0)
}

func (s *stmts) query(ctx context.Context, query string, args []any, limit int) ([]Row, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, s.fail(ctx, "select", "", query, err)
	}
	defer rows.Close() //nolint:errcheck

	out, err := scanRows(rows, limit)
	if err != nil {
		return nil, s.fail(ctx, "select", "", query, err)
	}
	s.observe("select", nil)
	return out, nil
}

func (s *stmts) fail(ctx context.Context, op, table, query string, err error) error {
	s.observe(op, err)
	f := &Failure{Op: op, Table: table, Err: err, Duplicate: IsDuplicate(err)}
	s.log.Error(ctx, "sql statement failed", "op", op, "table", table, "query", query, "err", err)
	return f
}

func (s *stmts) observe(op string, err error) {
	if s.obs != nil {
		s.obs.ObserveStatement(op, err)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ DBTX = (*sql.Conn)(nil)
