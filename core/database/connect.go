package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/cpabot/core/logger"
)

func init() {
	// sqlx only knows the mattn driver name; modernc registers as "sqlite".
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

const connectTimeout = 5 * time.Second

// Connect opens a pool for cfg.Driver and pings it. SQLite gets a single
// connection so writers never contend for the file lock.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	driver, dsn, pool := DriverPostgres, postgresDSN(cfg), cfg.MaxConnections
	if cfg.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		driver, dsn, pool = DriverSQLite, sqliteDSN(cfg.Path), 1
	}

	start := time.Now()
	db, err := sqlx.Open(driver, dsn)
	if err == nil {
		if err = db.PingContext(ctx); err != nil {
			_ = db.Close()
		}
	}
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect",
			append(connAttrs(cfg), slog.String("status", "fail"), slog.String("err", err.Error()), slog.Duration("duration", took))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool = max(pool, 1)
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect",
		append(connAttrs(cfg), slog.String("status", "ok"), slog.Int("pool_open", pool), slog.Duration("duration", took))...)
	return db, nil
}

// connAttrs describes the target without credentials.
func connAttrs(cfg Config) []slog.Attr {
	if cfg.Driver == DriverSQLite {
		return []slog.Attr{slog.String("driver", DriverSQLite), slog.String("db", cfg.Path)}
	}
	return []slog.Attr{
		slog.String("driver", DriverPostgres),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}
}

func postgresDSN(cfg Config) string {
	return fmt.Sprintf("user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)
}

// sqliteDSN enables WAL, foreign keys and a busy timeout through modernc pragmas.
func sqliteDSN(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}

// WaitForPostgres pings dsn every two seconds until it answers or timeout passes.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	db, err := sql.Open(DriverPostgres, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	tick := time.NewTicker(2 * time.Second)
	defer tick.Stop()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}
