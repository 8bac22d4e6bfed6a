package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	"github.com/m3rciful/cpabot/core/logger"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"
	"github.com/m3rciful/cpabot/core/telegram/inbound"
	"github.com/m3rciful/cpabot/core/telegram/netutil"
	tgsender "github.com/m3rciful/cpabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	InboundOptions    inbound.Options
	HTTP              HTTPClientOptions

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips deleteWebhook before long polling starts.
	KeepWebhook bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, wires middlewares and routes, and serves updates
// until ctx is cancelled. Cancellation is a clean shutdown and returns nil.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	settings := BotSettings(cfg, opts.HTTP, onError(ctx))
	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %s", netutil.Redact(err))
	}
	logMode(ctx, bot, settings.Poller, time.Since(start), !opts.KeepWebhook)

	inOpts := opts.InboundOptions
	if inOpts.OnError == nil {
		inOpts.OnError = bot.OnError
	}
	queue := inbound.New(inOpts)
	defer queue.Close()
	bot.Use(queue.Middleware)
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg, cfg.Telegram.AdminIDs...)

	dispatcher := tgsender.NewDispatcher(opts.DispatcherOptions)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		if !errors.Is(ctx.Err(), context.Canceled) {
			runErr = ctx.Err()
		}
	case <-done:
	}
	// Handlers still queued may send replies, so drain before the dispatcher closes.
	queue.Close()

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	return runErr
}

// BotSettings builds the telebot settings RunTelegram uses. The bot processes
// updates synchronously; concurrency comes from the inbound queue, which keeps
// each sender's updates in order.
func BotSettings(cfg *coreconfig.Config, httpOpts HTTPClientOptions, onErr func(error, tele.Context)) tele.Settings {
	return tele.Settings{
		Token:       cfg.Telegram.Token,
		Poller:      BuildPoller(PollerOptionsFromConfig(cfg)),
		Client:      BuildHTTPClient(httpOpts),
		OnError:     onErr,
		Synchronous: true,
	}
}

func onError(ctx context.Context) func(error, tele.Context) {
	return func(err error, c tele.Context) {
		logCtx := ctx
		if c != nil {
			logCtx = tghelpers.BuildContext(c)
		}
		logger.LogEvent(logCtx, logger.TG, slog.LevelError, "tg.error",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_kind", netutil.Kind(err)),
		)
	}
}

// logMode reports the update source. In polling mode a leftover webhook would
// make getUpdates fail, so it is removed first unless removeWebhook is false.
func logMode(ctx context.Context, bot *tele.Bot, poller tele.Poller, took time.Duration, removeWebhook bool) {
	if p, ok := poller.(*tele.Webhook); ok {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}

	attrs := []slog.Attr{
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if lp, ok := poller.(*tele.LongPoller); ok {
		attrs = append(attrs, slog.Int("timeout_seconds", int(lp.Timeout/time.Second)))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "mode", attrs...)

	if !removeWebhook {
		return
	}
	if err := bot.RemoveWebhook(false); err != nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelWarn, "delete_webhook",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "delete_webhook", slog.String("status", "ok"))
}
