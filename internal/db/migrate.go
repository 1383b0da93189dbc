package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations — встроенные SQL-миграции (формат goose).
func Migrations() embed.FS { return migrationsFS }

func init() {
	goose.SetBaseFS(migrationsFS)
}

// Migrate выполняет goose-команду: up, down, status, version, redo, reset.
func Migrate(ctx context.Context, database *sql.DB, command string, args ...string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.RunContext(ctx, command, database, "migrations", args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

// MigrateUp — до последней версии; вызывается при старте сервера.
func MigrateUp(ctx context.Context, database *sql.DB) error {
	return Migrate(ctx, database, "up")
}
