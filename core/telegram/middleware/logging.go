package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update IDs. The logger runs both globally
// and on every route, so the same update passes through it more than once.
var receipts = struct {
	sync.Mutex
	seen map[int]time.Time
}{seen: make(map[int]time.Time)}

const receiptTTL = 10 * time.Second

func firstReceipt(updateID int, now time.Time) bool {
	receipts.Lock()
	defer receipts.Unlock()
	for id, ts := range receipts.seen {
		if now.Sub(ts) > receiptTTL {
			delete(receipts.seen, id)
		}
	}
	if _, dup := receipts.seen[updateID]; dup {
		return false
	}
	receipts.seen[updateID] = now
	return true
}

// LoggerMiddleware stores a request context (rid plus update, user and chat ids)
// on the tele.Context and emits one sampled debug line per received update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		ctx := tghelpers.NewRequestContext(c)

		if logger.ShouldSampleDebug() && firstReceipt(upd.ID, time.Now()) {
			logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", receiptAttrs(c, upd)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, upd tele.Update) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("kind", updateKind(upd)),
	}
	if ch := c.Chat(); ch != nil {
		attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
	}
	if u := c.Sender(); u != nil {
		if u.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
		}
		if u.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", u.LanguageCode))
		}
	}
	switch {
	case upd.Callback != nil:
		key, payload := callbacks.ParseCallbackData(upd.Callback)
		if key != "" {
			attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
		}
		if payload != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
		}
	case upd.Message != nil:
		if t := c.Text(); t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
	}
	return attrs
}
