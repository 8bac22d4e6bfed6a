package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"
	"github.com/m3rciful/cpabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions configures callback dispatch.
type CallbackOptions struct {
	// NotFound handles unknown keys when the registry has no fallback of its own.
	NotFound tele.HandlerFunc
	// Guard runs before every registered handler whose key is not in Open.
	// Returning false stops the callback; the guard answers the user itself.
	Guard func(c tele.Context) bool
	Open  map[string]struct{}
}

// CallbackRoute dispatches every callback query by its key. Whatever the handler
// did, the query is acknowledged afterwards so the client's spinner stops.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		defer tghelpers.AckCallback(c)

		key, _ := callbacks.ParseCallbackData(c.Callback())
		name := "callback." + normalizeHandlerName(key)
		keyAttr := slog.String("cb_key", key)

		h, ok := reg.GetCallback(key)
		switch {
		case !ok || h == nil:
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			if h == nil {
				logHandlerSummary(c, name, start, "skip", "ok", nil, keyAttr, slog.String("reason", "not_found"))
				return nil
			}
			return handleWithSummary(c, name, start, func() error { return h(c) },
				keyAttr, slog.String("reason", "not_found"))
		case !opts.open(key) && opts.Guard != nil && !opts.Guard(c):
			logHandlerSummary(c, name, start, "skip", "denied", nil, keyAttr, slog.String("reason", "guard"))
			return nil
		}
		return handleWithSummary(c, name, start, func() error { return h(c) }, keyAttr)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func (o CallbackOptions) open(key string) bool {
	_, ok := o.Open[key]
	return ok
}
