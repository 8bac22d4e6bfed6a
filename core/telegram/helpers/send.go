package helpers

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes helper sends through d. With nil they run inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// deliver hands run to the dispatcher, or runs it inline when there is none or
// its queue cannot take more work.
func deliver(c tele.Context, action string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// IsParseError reports whether Telegram rejected a message's Markdown entities.
func IsParseError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "can't parse entities")
}

// SendText sends text without a parse mode.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return deliver(c, "send.text", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}

// SendMD sends text in legacy Markdown with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return deliver(c, "send.md", func() error { return c.Send(text, opts) })
}

// SendRich sends user-authored Markdown. If Telegram cannot parse it, plain is
// sent instead so a malformed section still reaches the reader.
func SendRich(c tele.Context, markdown, plain string) error {
	return deliver(c, "send.rich", func() error {
		err := c.Send(markdown, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		if !IsParseError(err) {
			return err
		}
		logger.LogEvent(BuildContext(c), logger.TG, slog.LevelWarn, "send.markdown_rejected",
			slog.String("status", "retry"),
		)
		return c.Send(plain)
	})
}
