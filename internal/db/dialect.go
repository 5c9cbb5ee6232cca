package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Dialect describes how statements are shaped for one backend.
type Dialect struct {
	// Name is DialectPostgres or DialectSQLite.
	Name string
	// Driver is the database/sql driver name.
	Driver string
}

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Dialect{Name: DialectPostgres, Driver: driver}, nil
	case "sqlite":
		return Dialect{Name: DialectSQLite, Driver: driver}, nil
	default:
		return Dialect{}, fmt.Errorf("db: unsupported driver %q", driver)
	}
}

// Postgres and SQLite are the dialects used by the default drivers.
var (
	Postgres = Dialect{Name: DialectPostgres, Driver: "postgres"}
	SQLite   = Dialect{Name: DialectSQLite, Driver: "sqlite"}
)

// Rebind rewrites `?` placeholders to `$N` for postgres. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d.Name != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// GooseDialect is the migration dialect name.
func (d Dialect) GooseDialect() string {
	if d.Name == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

func (d Dialect) lastInsertID(ctx context.Context, conn DBTX, res sql.Result) (int64, error) {
	if d.Name == DialectSQLite {
		return res.LastInsertId()
	}
	var id int64
	if err := conn.QueryRowContext(ctx, "SELECT lastval()").Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
