package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	coredatabase "github.com/m3rciful/cpabot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)
}

func TestRunMigratesAndSeeds(t *testing.T) {
	var seeded int
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Path: filepath.Join(t.TempDir(), "boot.db")},
		LoggerInit: noLogger,
		Modules: Modules{Seeders: []Seeder{
			SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
				_, err := db.ExecContext(ctx, db.Rebind(
					"INSERT INTO sections (id, title, content, position) VALUES (?, ?, ?, ?)"),
					"s1", "Intro", "Body", 1)
				seeded++
				return err
			}),
		}},
	})
	require.NoError(t, err)
	defer res.DB.Close()

	assert.Equal(t, 1, seeded)
	var n int
	require.NoError(t, res.DB.Get(&n, "SELECT COUNT(*) FROM sections"))
	assert.Equal(t, 1, n)
}

func TestRunStopsOnSeederError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Path: filepath.Join(t.TempDir(), "boot.db")},
		LoggerInit: noLogger,
		Modules: Modules{Seeders: []Seeder{
			SeederFunc(func(context.Context, *sqlx.DB) error { return boom }),
		}},
	})
	require.ErrorIs(t, err, boom)
}

func TestRunRejectsInvalidDatabaseConfig(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "postgres"},
		LoggerInit: noLogger,
	})
	require.Error(t, err)
}

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var order []string
	boom := errors.New("no db")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Path: filepath.Join(t.TempDir(), "boot.db")},
		LoggerInit: noLogger,
		Migrate: func(coredatabase.Config) error {
			order = append(order, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			order = append(order, "connect")
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bootstrap: connect")
	assert.Equal(t, []string{"migrate", "connect"}, order)
}
