package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/cpabot/core/logger"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// updateKind names an update the way rate_limit.exclude_updates does.
func updateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	case u.Query != nil:
		return "inline_query"
	}
	return "other"
}

// lastSeen remembers when each user was last let through. Entries older than the
// interval carry no information and are dropped during periodic sweeps.
type lastSeen struct {
	mu       sync.Mutex
	at       map[int64]time.Time
	interval time.Duration
	sweepAt  time.Time
}

func (l *lastSeen) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.After(l.sweepAt) {
		for id, t := range l.at {
			if now.Sub(t) >= l.interval {
				delete(l.at, id)
			}
		}
		l.sweepAt = now.Add(time.Minute)
	}
	if t, ok := l.at[userID]; ok && now.Sub(t) < l.interval {
		return false
	}
	l.at[userID] = now
	return true
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seen := &lastSeen{at: make(map[int64]time.Time), interval: opts.Interval}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.allow(user.ID, now()) {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
