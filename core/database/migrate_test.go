package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsMatchAcrossDrivers(t *testing.T) {
	pg := upMigrations(migrationsFS, migrationsDir(DriverPostgres))
	lite := upMigrations(migrationsFS, migrationsDir(DriverSQLite))
	require.NotEmpty(t, pg)
	assert.Equal(t, pg, lite)
	for i, f := range pg {
		assert.Equal(t, uint64(i+1), f.version, f.name)
	}
}

func TestAppliedBetween(t *testing.T) {
	files := []migrationFile{{1, "000001_content.up.sql"}, {2, "000002_analytics.up.sql"}, {3, "000003_next.up.sql"}}
	assert.Empty(t, appliedBetween(files, 2, 2))
	assert.Len(t, appliedBetween(files, 1, 3), 2)
	assert.Equal(t, []string{"000002_analytics.up.sql"}, appliedBetween(files, 1, 2))
	assert.Equal(t, uint64(12), parseVersion("000012_x.up.sql"))
	assert.Equal(t, uint64(0), parseVersion("garbage"))
}

func TestPostgresURLEscapesCredentials(t *testing.T) {
	cfg := Config{User: "bot", Password: "p@ss/word", Host: "db", Port: "5432", Name: "cpa", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss%2Fword@db:5432/cpa?sslmode=disable", postgresURL(cfg))
}

func TestRunMigrationsSQLiteIsRepeatable(t *testing.T) {
	cfg := Config{Driver: "SQLite", Path: filepath.Join(t.TempDir(), "nested", "bot.db")}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, 1, cfg.MaxConnections)

	v, dirty, err := MigrationVersion(cfg)
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	require.NoError(t, RunMigrations(cfg))
	require.NoError(t, RunMigrations(cfg))

	v, dirty, err = MigrationVersion(cfg)
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)
	assert.False(t, dirty)

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"sections", "legacy_proxy", "quizzes", "users", "interactions"} {
		var n int
		require.NoError(t, db.Get(&n, db.Rebind("SELECT COUNT(*) FROM "+table)), table)
		assert.Zero(t, n, table)
	}
}

func TestConfigNormalize(t *testing.T) {
	empty := Config{}
	require.NoError(t, empty.Normalize())
	assert.Equal(t, DriverSQLite, empty.Driver)
	assert.Equal(t, "data/cpabot.db", empty.Path)

	pg := Config{Driver: "postgresql", Host: "db", Name: "bot"}
	require.NoError(t, pg.Normalize())
	assert.Equal(t, DriverPostgres, pg.Driver)
	assert.Equal(t, "5432", pg.Port)
	assert.Equal(t, "disable", pg.SSLMode)
	assert.Equal(t, 10, pg.MaxConnections)

	missingHost := Config{Driver: DriverPostgres}
	require.Error(t, missingHost.Normalize())

	unknown := Config{Driver: "oracle"}
	require.Error(t, unknown.Normalize())
}
