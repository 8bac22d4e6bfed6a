// Package bot wires the content, analytics, access and workflow services to Telegram.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/cpabot/core/logger"
	tg "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/commands"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"
	"github.com/m3rciful/cpabot/core/telegram/middleware"
	"github.com/m3rciful/cpabot/core/telegram/router"
	"github.com/m3rciful/cpabot/internal/access"
	"github.com/m3rciful/cpabot/internal/analytics"
	"github.com/m3rciful/cpabot/internal/content"
	"github.com/m3rciful/cpabot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// RecentUsersShown is how many latest joins the stats screen lists.
const RecentUsersShown = 5

// Deps are the services the handlers call into.
type Deps struct {
	Content    *content.Store
	Analytics  *analytics.Store
	Gate       *access.Gate
	Workflow   *workflow.Machine
	InviteLink string
}

// Bot holds Telegram handlers. It is safe for concurrent use by telebot's update goroutines.
type Bot struct {
	content    *content.Store
	analytics  *analytics.Store
	gate       *access.Gate
	flow       *workflow.Machine
	inviteLink string
}

// New builds a Bot.
func New(d Deps) *Bot {
	return &Bot{
		content:    d.Content,
		analytics:  d.Analytics,
		gate:       d.Gate,
		flow:       d.Workflow,
		inviteLink: d.InviteLink,
	}
}

// Register adds commands and callbacks to reg. Admin-only callbacks are wrapped
// with the admin check here because the registry has no notion of roles.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     b.onStart,
			Description: "Open the main menu",
			Aliases:     []string{"menu"},
		},
		"/admin": {
			Handler:     b.onAdmin,
			Description: "Open the admin panel",
			AdminOnly:   true,
		},
		"/cancel": {
			Handler:     b.onCancel,
			Description: "Cancel the current admin input",
			AdminOnly:   true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", name, err)
		}
	}

	public := map[string]tele.HandlerFunc{
		cbCheckJoin:    b.onCheckJoin,
		cbView:         b.onView,
		cbBackHome:     b.onBackHome,
		cbNoop:         b.onNoop,
		cbRequestProxy: b.onRequestProxy,
		cbStartQuiz:    b.onStartQuiz,
		cbQuiz:         b.onQuiz,
	}
	admin := map[string]tele.HandlerFunc{
		cbAdminPanel:     b.onAdminPanel,
		cbAdminAdd:       b.onAdminAdd,
		cbAdminDelete:    b.onAdminDeleteList,
		cbDelete:         b.onDelete,
		cbAdminEdit:      b.onAdminEditList,
		cbEditSection:    b.onEditSection,
		cbAdminReorder:   b.onAdminReorder,
		cbMove:           b.onMove,
		cbAdminStats:     b.onAdminStats,
		cbAdminEditProxy: b.onAdminEditProxy,
		cbAdminCancel:    b.onAdminCancel,
	}

	for key, h := range public {
		if err := reg.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("register callback %s: %w", key, err)
		}
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{IsAdmin: b.gate.IsAdmin})
	for key, h := range admin {
		if err := reg.RegisterCallback(key, adminOnly(h)); err != nil {
			return fmt.Errorf("register callback %s: %w", key, err)
		}
	}
	return nil
}

// Routes returns the telebot routes for commands, callbacks, text and channel posts.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{IsAdmin: b.gate.IsAdmin})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		Guard: b.guard,
		Open:  map[string]struct{}{cbCheckJoin: {}},
	}))
	routes = append(routes, router.TextRoutes(dialog{b}, reg, router.TextOptions{IsAdmin: b.gate.IsAdmin})...)
	routes = append(routes, tg.Route{Endpoint: tele.OnChannelPost, Handler: b.onChannelPost})
	return routes
}

// OnStart binds the membership lookup to the running bot.
func (b *Bot) OnStart(_ context.Context, rt tg.Runtime) error {
	if rt.Bot != nil {
		b.gate.SetLookup(NewMembershipLookup(rt.Bot))
	}
	if b.gate.Community() == "" {
		logger.TG.Warn("membership requirement disabled",
			slog.String("event", "gate.disabled"),
			slog.String("hint", "post in the channel and read channel_id from the channel_post log line"),
		)
	}
	return nil
}

// OnRateLimited tells the user to slow down.
func (b *Bot) OnRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return tghelpers.Toast(c, textRateLimited)
	}
	return nil
}

// guard lets a callback through when the gate allows its sender; otherwise it
// answers with an alert and a fresh join prompt.
func (b *Bot) guard(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	ctx := tghelpers.BuildContext(c)
	if b.gate.Allowed(ctx, sender.ID) {
		return true
	}
	_ = tghelpers.Alert(c, textJoinAlert)
	_ = tghelpers.SendText(c, fmt.Sprintf(textJoinFirst, b.inviteLink), &tele.SendOptions{ReplyMarkup: joinMarkup(b.inviteLink)})
	return false
}

// dialog adapts the workflow machine to the text router.
type dialog struct{ b *Bot }

func (d dialog) InProgress(userID int64) bool {
	return d.b.flow.Active(userID)
}

func (d dialog) HandleText(c tele.Context) error {
	return d.b.onDialogText(c)
}
