package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is a per-user dialog that claims text messages while it is in progress.
type FSM interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// IsAdmin gates admin-only commands reached through plain text routing.
	// When nil such commands are never run from here.
	IsAdmin func(userID int64) bool
}

// TextRoutes routes text to, in order: the sender's dialog in progress, a
// registered command, the registry fallback, then opts.UnknownText. Documents
// only ever reach opts.UnknownDocument.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		name, h := textHandler(c, fsmMgr, reg, opts)
		if h == nil {
			logHandlerSummary(c, name, start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, name, start, func() error { return h(c) })
	}
	document := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument == nil {
			logHandlerSummary(c, "unexpected_document", start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, "unexpected_document", start, func() error {
			return opts.UnknownDocument(c)
		})
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

func textHandler(c tele.Context, fsmMgr FSM, reg *tg.Registry, opts TextOptions) (string, tele.HandlerFunc) {
	if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
		return "fsm", fsmMgr.HandleText
	}
	if reg != nil {
		if strings.HasPrefix(c.Text(), "/") {
			key, cmd, ok := reg.LookupCommand(commandName(c.Text()))
			if ok && cmd.Handler != nil && allowed(cmd.AdminOnly, opts.IsAdmin, c) {
				return normalizeHandlerName(key), cmd.Handler
			}
		}
		if fb := reg.TextFallback(); fb != nil {
			return "fallback", fb
		}
	}
	return "unknown_text", opts.UnknownText
}

// commandName strips arguments and a "@botname" suffix from a command message.
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return name
}

func allowed(adminOnly bool, isAdmin func(int64) bool, c tele.Context) bool {
	if !adminOnly {
		return true
	}
	return isAdmin != nil && c.Sender() != nil && isAdmin(c.Sender().ID)
}
