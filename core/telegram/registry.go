package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	ErrInvalidCommand  = errors.New("telegram: invalid command")
	ErrInvalidCallback = errors.New("telegram: invalid callback")
	ErrDuplicate       = errors.New("telegram: already registered")
)

// Registry maps slash commands and callback keys to handlers. It is filled
// during startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]commands.Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty registry without fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
	}
}

func skipRegistration(event string, err error, attrs ...slog.Attr) error {
	attrs = append(attrs, slog.String("reason", err.Error()))
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event, attrs...)
	return err
}

// RegisterCommand adds a command under its slash-prefixed name together with
// its aliases. A name or alias already taken is rejected.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		return skipRegistration("register.command.skip", ErrInvalidCommand, slog.String("name", name))
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return skipRegistration("register.command.skip",
			fmt.Errorf("%w: %q needs a slash prefix", ErrInvalidCommand, name), slog.String("name", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	endpoints := cmd.Endpoints(name)
	for _, ep := range endpoints {
		if r.taken(ep) {
			return skipRegistration("register.command.duplicate",
				fmt.Errorf("%w: %s", ErrDuplicate, ep), slog.String("name", name))
		}
	}
	r.commands[name] = cmd
	for _, alias := range endpoints[1:] {
		r.aliases[alias] = name
	}
	return nil
}

func (r *Registry) taken(endpoint string) bool {
	_, cmd := r.commands[endpoint]
	_, alias := r.aliases[endpoint]
	return cmd || alias
}

// ListCommands returns the menu entries sorted by name. Hidden commands are
// never listed; admin-only ones only when includeAdmin is set.
func (r *Registry) ListCommands(includeAdmin bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || (cmd.AdminOnly && !includeAdmin) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// LookupCommand resolves a name or alias, with or without the slash, to the
// canonical command name.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[name]; ok {
		name = canonical
	}
	cmd, ok := r.commands[name]
	if !ok {
		return "", commands.Command{}, false
	}
	return name, cmd, true
}

// Commands returns a snapshot of the registered commands keyed by canonical name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// RegisterCallback binds handler to a callback key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		return skipRegistration("register.callback.skip", ErrInvalidCallback, slog.String("key", key))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return skipRegistration("register.callback.duplicate",
			fmt.Errorf("%w: callback %s", ErrDuplicate, key), slog.String("key", key))
	}
	r.callbacks[key] = handler
	return nil
}

func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound sets the handler for callbacks with an unknown key.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that no command or dialog claims.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the command menu: public commands for everyone and
// the full list in each admin's private chat.
func InitBotCommands(bot *tele.Bot, reg *Registry, adminIDs ...int64) {
	ctx := context.Background()
	if err := bot.SetCommands(reg.ListCommands(false)); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
	full := reg.ListCommands(true)
	for _, id := range adminIDs {
		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: id}
		if err := bot.SetCommands(full, scope); err != nil {
			// Fails until the admin has opened a chat with the bot.
			logger.TWire.LogAttrs(ctx, slog.LevelWarn, "register.commands.admin_scope_failed",
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
}
