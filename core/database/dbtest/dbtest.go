// Package dbtest opens throwaway SQLite databases with the production migrations applied.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cpabot/core/database"
)

// Open returns a migrated SQLite database living in the test's temp dir.
func Open(tb testing.TB) *sqlx.DB {
	tb.Helper()

	cfg := database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(tb.TempDir(), "test.db"),
	}
	if err := cfg.Normalize(); err != nil {
		tb.Fatalf("normalize config: %v", err)
	}
	if err := database.RunMigrations(cfg); err != nil {
		tb.Fatalf("run migrations: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		tb.Fatalf("connect: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}
