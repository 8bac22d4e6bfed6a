// Package app assembles storage, services and Telegram handlers into a runnable bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cpabot/core/bootstrap"
	corecmd "github.com/m3rciful/cpabot/core/cmd"
	coreconfig "github.com/m3rciful/cpabot/core/config"
	"github.com/m3rciful/cpabot/core/logger"
	coretelegram "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/internal/access"
	"github.com/m3rciful/cpabot/internal/analytics"
	"github.com/m3rciful/cpabot/internal/bot"
	"github.com/m3rciful/cpabot/internal/content"
	"github.com/m3rciful/cpabot/internal/workflow"
)

// App owns the database handle and every service built on top of it.
type App struct {
	cfg *Config
	db  *sqlx.DB

	Content   *content.Store
	Analytics *analytics.Store
	Gate      *access.Gate
	Workflow  *workflow.Machine
	Bot       *bot.Bot
	Registry  *coretelegram.Registry
}

var (
	_ corecmd.ConfigCarrier = (*Config)(nil)
	_ corecmd.TelegramApp   = (*App)(nil)
)

// BootstrapOptions lets callers swap infrastructure steps, mainly in tests.
type BootstrapOptions struct {
	LoggerInit func(*Config) error
}

func contentOptions(cfg *Config) content.Options {
	return content.Options{ProxyTitle: cfg.Content.ProxyTitle}
}

// contentSeeder folds legacy proxy text into sections and, when enabled, seeds
// the starter sections into an empty store.
func contentSeeder(cfg *Config) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		store := content.NewStore(db, contentOptions(cfg))
		if cfg.Content.SeedDefaults {
			if _, err := store.SeedDefaults(ctx); err != nil {
				return err
			}
		}
		_, err := store.Normalize(ctx)
		return err
	})
}

// Bootstrap runs the shared bootstrap pipeline and wires the services.
func Bootstrap(ctx context.Context, cfg *Config, opts ...BootstrapOptions) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	bo := bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Modules:  bootstrap.Modules{Seeders: []bootstrap.Seeder{contentSeeder(cfg)}},
	}
	if len(opts) > 0 && opts[0].LoggerInit != nil {
		initLogger := opts[0].LoggerInit
		bo.LoggerInit = func(*coreconfig.Config) error { return initLogger(cfg) }
	}
	res, err := bootstrap.Run(ctx, bo)
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB)
}

// New wires services over an already migrated database.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("app: config and database are required")
	}
	contentStore := content.NewStore(db, contentOptions(cfg))
	analyticsStore := analytics.NewStore(db)
	// The Telegram lookup is bound once the bot runtime exists.
	gate := access.NewGate(cfg.Telegram.AdminIDs, cfg.Channel.ID, nil)
	machine := workflow.NewMachine(nil, contentStore)

	b := bot.New(bot.Deps{
		Content:    contentStore,
		Analytics:  analyticsStore,
		Gate:       gate,
		Workflow:   machine,
		InviteLink: cfg.Channel.InviteLink,
	})
	reg := coretelegram.NewRegistry()
	if err := b.Register(reg); err != nil {
		return nil, err
	}

	logger.L.With("component", "app").Info("services wired",
		slog.String("event", "wire"),
		slog.Int("admins", len(cfg.Telegram.AdminIDs)),
		slog.Bool("membership_required", cfg.Channel.ID != ""),
	)

	return &App{
		cfg:       cfg,
		db:        db,
		Content:   contentStore,
		Analytics: analyticsStore,
		Gate:      gate,
		Workflow:  machine,
		Bot:       b,
		Registry:  reg,
	}, nil
}

// DB returns the underlying database handle.
func (a *App) DB() *sqlx.DB { return a.db }

// Close releases the database.
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.Registry,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.Bot.OnRateLimited),
		Routes:      a.Bot.Routes(a.Registry),
		OnStart:     a.Bot.OnStart,
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}
