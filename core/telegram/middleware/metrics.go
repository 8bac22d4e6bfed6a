package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const (
	messagesKey = "messages"
	keyboardKey = "kb"
)

// countingContext counts outgoing messages and edits so the handler summary can
// report how much a handler said and whether it attached a keyboard.
type countingContext struct{ tele.Context }

func (m countingContext) count(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	n, _ := m.Get(messagesKey).(int)
	m.Set(messagesKey, n+1)
	if withMarkup(opts) {
		m.Set(keyboardKey, true)
	}
	return nil
}

func withMarkup(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m countingContext) Send(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware resets the per-update counters and wraps the context.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(messagesKey, 0)
		c.Set(keyboardKey, false)
		return next(countingContext{Context: c})
	}
}

// GetCounters returns the number of messages sent for the update and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get(messagesKey).(int)
	kb, _ := c.Get(keyboardKey).(bool)
	return msgs, kb
}
