package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	"github.com/m3rciful/cpabot/core/logger"
	coretelegram "github.com/m3rciful/cpabot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath when set.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals stop the bot; nil means SIGINT and SIGTERM.
	Signals []os.Signal
}

var (
	errNoLoader    = errors.New("cmd: LoadConfig is required")
	errNoBootstrap = errors.New("cmd: Bootstrap is required")
)

// configPath picks the config file: explicit path, then the env variable, then the default.
func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	for _, p := range []string{o.ConfigPath, os.Getenv(env), o.DefaultConfigPath} {
		if p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// Run loads configuration, bootstraps the app and serves updates until a stop
// signal arrives. The logger is flushed on the way out.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return errNoLoader
	}
	if opts.Bootstrap == nil {
		return errNoBootstrap
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}

	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	startedAt := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	withLifecycleLogs(&runOpts, startedAt)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// withLifecycleLogs wraps the app's hooks with the ready and shutdown lines.
func withLifecycleLogs(opts *coretelegram.RunOptions, startedAt time.Time) {
	appLog := logger.Component("app")
	onStart, onStop := opts.OnStart, opts.OnStop

	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.LogEvent(ctx, appLog, slog.LevelInfo, "ready",
			slog.Duration("startup_duration", time.Since(startedAt)),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.LogEvent(ctx, appLog, slog.LevelInfo, "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}
