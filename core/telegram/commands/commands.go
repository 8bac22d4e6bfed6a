// Package commands describes slash commands kept in the bot registry.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for everyone else and listed only in admin chats.
	AdminOnly bool
	// Hidden commands work but never appear in the Telegram command menu.
	Hidden bool
	// Aliases are extra names routed to the same handler, with or without the slash.
	Aliases []string
}

// Endpoints returns the canonical name followed by every alias, all slash-prefixed.
func (c Command) Endpoints(name string) []string {
	out := []string{name}
	for _, a := range c.Aliases {
		if a == "" {
			continue
		}
		if a[0] != '/' {
			a = "/" + a
		}
		out = append(out, a)
	}
	return out
}
