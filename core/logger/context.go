package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	keyLogger ctxKey = iota
	keyMeta
)

// updateMeta identifies the Telegram update a log line belongs to.
type updateMeta struct {
	rid      string
	updateID int
	userID   int64
	chatID   int64
	handler  string
}

func metaFrom(ctx context.Context) updateMeta {
	if ctx == nil {
		return updateMeta{}
	}
	m, _ := ctx.Value(keyMeta).(updateMeta)
	return m
}

func withMeta(ctx context.Context, fn func(*updateMeta)) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	m := metaFrom(ctx)
	fn(&m)
	return context.WithValue(ctx, keyMeta, m)
}

// WithLogger stores log in ctx; FromContext returns it.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, keyLogger, log)
}

// FromContext returns the logger stored by WithLogger, or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(keyLogger).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return withMeta(ctx, func(m *updateMeta) { m.rid = rid })
}

// RIDFrom returns the correlation id, if any.
func RIDFrom(ctx context.Context) string {
	return metaFrom(ctx).rid
}

// WithUpdateMeta attaches the update, user and chat ids.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	return withMeta(ctx, func(m *updateMeta) {
		m.updateID = updateID
		m.userID = userID
		m.chatID = chatID
	})
}

// WithHandler names the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		if ctx == nil {
			return context.Background()
		}
		return ctx
	}
	return withMeta(ctx, func(m *updateMeta) { m.handler = handler })
}

// UserIDFrom returns the Telegram user id of the update, or 0.
func UserIDFrom(ctx context.Context) int64 { return metaFrom(ctx).userID }

// ChatIDFrom returns the chat id of the update, or 0.
func ChatIDFrom(ctx context.Context) int64 { return metaFrom(ctx).chatID }

// UpdateIDFrom returns the update id, or 0.
func UpdateIDFrom(ctx context.Context) int { return metaFrom(ctx).updateID }

// fields copies non-zero metadata into a log record without overriding explicit attributes.
func (m updateMeta) fields(dst map[string]any) {
	set := func(k string, v any, zero bool) {
		if zero {
			return
		}
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
	set("rid", m.rid, m.rid == "")
	set("update_id", m.updateID, m.updateID == 0)
	set("user_id", m.userID, m.userID == 0)
	set("chat_id", m.chatID, m.chatID == 0)
	set("handler", m.handler, m.handler == "")
}
