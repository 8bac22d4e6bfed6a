package router

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/m3rciful/cpabot/core/logger"
	tg "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin check applied to admin-only commands.
type CommandRouteOptions struct {
	IsAdmin       func(userID int64) bool
	AdminIDs      []int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command name and alias. Every handler is
// wrapped with recovery and logging; admin-only commands also get the admin check.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		AdminIDs: opts.AdminIDs,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	var routes []tg.Route
	for _, name := range slices.Sorted(maps.Keys(cmds)) {
		def := cmds[name]
		h := middleware.RecoverMiddleware(middleware.LoggerMiddleware(def.Handler))
		if def.AdminOnly {
			h = adminOnly(h)
		}
		for _, ep := range def.Endpoints(name) {
			routes = append(routes, tg.Route{Endpoint: ep, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("endpoints", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
