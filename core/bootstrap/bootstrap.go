// Package bootstrap brings up the infrastructure a bot needs before it can take
// updates: logging, a migrated database and seeded reference data.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	coredatabase "github.com/m3rciful/cpabot/core/database"
	"github.com/m3rciful/cpabot/core/logger"
)

// Options configure Run. The function fields default to the core implementations
// and exist so tests can swap them out.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Modules  Modules

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result holds what Run brought up. The caller owns DB.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, applies migrations, connects and runs the
// seeders in order. Any failure closes what was opened and is returned with the
// stage name.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts = opts.withDefaults()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	dbCfg := opts.Database
	if err := dbCfg.Normalize(); err != nil {
		return nil, fmt.Errorf("bootstrap: database config: %w", err)
	}

	if err := stage(ctx, "migrate", func() error { return opts.Migrate(dbCfg) }); err != nil {
		return nil, err
	}
	var db *sqlx.DB
	if err := stage(ctx, "connect", func() (err error) {
		db, err = opts.Connect(dbCfg)
		return err
	}); err != nil {
		return nil, err
	}

	for i, s := range opts.Modules.Seeders {
		if err := stage(ctx, fmt.Sprintf("seed.%d", i), func() error { return s.Seed(ctx, db) }); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Result{DB: db}, nil
}

func (o Options) withDefaults() Options {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
	return o
}

// stage runs fn and logs its outcome under the bootstrap component.
func stage(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	attrs := []slog.Attr{
		slog.String("stage", name),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		logger.LogEvent(ctx, logger.Component("bootstrap"), slog.LevelError, "bootstrap.stage",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return fmt.Errorf("bootstrap: %s: %w", name, err)
	}
	logger.LogEvent(ctx, logger.Component("bootstrap"), slog.LevelDebug, "bootstrap.stage", append(attrs, slog.String("status", "ok"))...)
	return nil
}
