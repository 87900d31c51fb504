package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrator applies the embedded schema migrations for one dialect.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator prepares a migrator for db using the SQL files of driver.
func NewMigrator(db *sql.DB, driver string) (*Migrator, error) {
	var dialect goose.Dialect
	switch driver {
	case DriverMySQL:
		dialect = goose.DialectMySQL
	case DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	fsys, err := fs.Sub(migrations, "migrations/"+driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("migrate: new provider: %w", err)
	}
	return &Migrator{provider: p}, nil
}

// Run applies all pending migrations and returns how many were applied.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	return len(results), nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

// Migrate is a convenience wrapper applying all migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	m, err := NewMigrator(db, driver)
	if err != nil {
		return err
	}
	_, err = m.Run(ctx)
	return err
}
