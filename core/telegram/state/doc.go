// Package state keeps per-user conversation sessions for Telegram bots.
// It holds no handler registry; callers decide what a state means.
package state
