package router

import (
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/cpabot/core/logger"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"
	"github.com/m3rciful/cpabot/core/telegram/middleware"
	"github.com/m3rciful/cpabot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary tags the request context with handlerName, runs fn and logs
// its summary line.
func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, "", "", err, extras...)
	return err
}

// logHandlerSummary writes the single handler.handled line of an update. Status
// and outcome default to ok or fail depending on err.
func logHandlerSummary(c tele.Context, handlerName string, start time.Time, status, outcome string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	result := "ok"
	if err != nil {
		result = "fail"
	}
	if status == "" {
		status = result
	}
	if outcome == "" {
		outcome = result
	}

	msgs, kb := middleware.GetCounters(c)
	attrs := make([]slog.Attr, 0, 8+len(extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_kind", netutil.Kind(err)),
		)
		if code := netutil.StatusCode(err); code != 0 {
			attrs = append(attrs, slog.Int("status_code", code))
		}
	}
	attrs = append(attrs, extras...)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Component("tg"), level, "handler.handled", attrs...)
}

// normalizeHandlerName turns a command or callback key into a log-friendly name.
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}
