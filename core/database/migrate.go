package database

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/cpabot/core/logger"
)

//go:embed migrations
var migrationsFS embed.FS

const previewFiles = 6

// migrationFile is one embedded up migration, e.g. 000002_analytics.up.sql.
type migrationFile struct {
	version uint64
	name    string
}

func migrationsDir(driver string) string {
	return path.Join("migrations", driver)
}

// upMigrations lists the up files in dir ordered by version. Files without a
// numeric prefix get version 0.
func upMigrations(fsys fs.FS, dir string) []migrationFile {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		files = append(files, migrationFile{version: parseVersion(e.Name()), name: e.Name()})
	}
	slices.SortFunc(files, func(a, b migrationFile) int {
		return cmp.Or(cmp.Compare(a.version, b.version), strings.Compare(a.name, b.name))
	})
	return files
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the names of files with from < version <= to.
func appliedBetween(files []migrationFile, from, to uint64) []string {
	var names []string
	for _, f := range files {
		if f.version > from && f.version <= to {
			names = append(names, f.name)
		}
	}
	return names
}

func migrationURL(cfg Config) (string, error) {
	switch cfg.Driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return "", fmt.Errorf("create database directory: %w", err)
		}
		return "sqlite://" + cfg.Path, nil
	case DriverPostgres:
		dsn := postgresURL(cfg)
		if err := WaitForPostgres(dsn, 30*time.Second); err != nil {
			return "", fmt.Errorf("database not ready: %w", err)
		}
		return dsn, nil
	}
	return "", fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// postgresURL renders cfg as a URL; golang-migrate does not accept key=value DSNs.
func postgresURL(cfg Config) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// openMigrator binds the embedded migrations for cfg.Driver to the database.
// The caller closes the returned migrator.
func openMigrator(cfg Config) (*migrate.Migrate, []migrationFile, error) {
	dbURL, err := migrationURL(cfg)
	if err != nil {
		return nil, nil, err
	}
	dir := migrationsDir(cfg.Driver)
	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init migrations: %w", err)
	}
	return m, upMigrations(migrationsFS, dir), nil
}

func closeMigrator(m *migrate.Migrate) {
	if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
		logger.LogEvent(context.Background(), logger.MIG, slog.LevelWarn, "close",
			slog.String("status", "fail"),
			slog.String("err", errors.Join(srcErr, dbErr).Error()),
		)
	}
}

// RunMigrations applies every pending up migration for the configured driver
// and logs a from/to version summary. Running it on an up-to-date schema is a no-op.
func RunMigrations(cfg Config) error {
	ctx := context.Background()
	m, files, err := openMigrator(cfg)
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "init",
			slog.String("status", "fail"),
			slog.String("driver", cfg.Driver),
			slog.String("err", err.Error()),
		)
		return err
	}
	defer closeMigrator(m)

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve", fileAttrs(migrationsDir(cfg.Driver), names)...)

	from, _, _ := m.Version()
	start := time.Now()
	err = m.Up()
	took := logger.RoundMS(time.Since(start))
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "apply",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("apply migrations: %w", err)
	}

	to, _, _ := m.Version()
	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply", fileAttrs("", applied)...)
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

// MigrationVersion reports the schema version recorded in the database and
// whether a previous migration stopped halfway. A fresh database is version 0.
func MigrationVersion(cfg Config) (uint, bool, error) {
	m, _, err := openMigrator(cfg)
	if err != nil {
		return 0, false, err
	}
	defer closeMigrator(m)
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func fileAttrs(dir string, names []string) []slog.Attr {
	var attrs []slog.Attr
	if dir != "" {
		attrs = append(attrs, slog.String("path", dir))
	}
	attrs = append(attrs, slog.Int("files_total", len(names)))
	preview, truncated := logger.SummarizeStrings(names, previewFiles)
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}
