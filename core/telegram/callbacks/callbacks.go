// Package callbacks decodes inline button callback data.
package callbacks

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ErrMalformed is returned when a payload does not have the expected shape.
var ErrMalformed = errors.New("callbacks: malformed payload")

// ParseCallbackData splits a callback into its key and payload. Buttons built with
// ReplyMarkup.Data arrive as "\f<unique>|<payload>" when no per-unique handler is
// registered; telebot has already split them when one is.
func ParseCallbackData(cb *tele.Callback) (key, payload string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	key, payload, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(key), payload
}

// CallbackKey returns the routing key of the current callback.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// CallbackPayload returns everything after the key.
func CallbackPayload(c tele.Context) string {
	_, p := ParseCallbackData(c.Callback())
	return p
}

// PayloadPair splits a payload like "up|01HX..." into two non-empty parts. The
// second part keeps any further separators.
func PayloadPair(c tele.Context, sep string) (string, string, error) {
	first, second, ok := strings.Cut(CallbackPayload(c), sep)
	if !ok || first == "" || second == "" {
		return "", "", ErrMalformed
	}
	return first, second, nil
}
