package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	"github.com/m3rciful/cpabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares returns the global chain in registration order: panic
// recovery, the optional per-user rate limit, request logging and send counters.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{{Name: "recover", Use: middleware.RecoverMiddleware}}
	if rl, ok := rateLimitOptions(cfg, onLimited); ok {
		mws = append(mws, Middleware{Name: "rate_limit", Use: middleware.RateLimitMiddleware(rl)})
	}
	return append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
}

// rateLimitOptions reads rate_limit from cfg. Normalize has already lowercased
// and validated the excluded update kinds.
func rateLimitOptions(cfg *coreconfig.Config, onLimited tele.HandlerFunc) (middleware.RateLimitOptions, bool) {
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return middleware.RateLimitOptions{}, false
	}
	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return middleware.RateLimitOptions{
		Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Exclude:   exclude,
		OnLimited: onLimited,
	}, true
}
