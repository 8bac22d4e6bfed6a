package bootstrap

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Seeder fills freshly migrated storage. Seeders run on every start, so they
// must leave existing data alone.
type Seeder interface {
	Seed(ctx context.Context, db *sqlx.DB) error
}

type SeederFunc func(ctx context.Context, db *sqlx.DB) error

func (f SeederFunc) Seed(ctx context.Context, db *sqlx.DB) error { return f(ctx, db) }

// Modules are the app-specific hooks Run executes after the database is ready.
type Modules struct {
	Seeders []Seeder
}
