package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations for the executor's dialect.
func (e *Executor) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(e.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("migrate dialect: %w", err)
	}
	if err := gooseUpContext(ctx, e.sql, "migrations/"+e.dialect.Name); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	e.log.Info(ctx, "migrations applied", "dialect", e.dialect.Name)
	return nil
}
