package helpers

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

const answeredKey = "cb_answered"

// Answer responds to the current callback query once; later calls are no-ops.
func Answer(c tele.Context, resp *tele.CallbackResponse) error {
	if c.Callback() == nil {
		return nil
	}
	if answered, _ := c.Get(answeredKey).(bool); answered {
		return nil
	}
	c.Set(answeredKey, true)
	if resp == nil {
		return c.Respond()
	}
	return c.Respond(resp)
}

// Alert answers the current callback with a modal alert.
func Alert(c tele.Context, text string) error {
	return Answer(c, &tele.CallbackResponse{Text: text, ShowAlert: true})
}

// Toast answers the current callback with a short notification.
func Toast(c tele.Context, text string) error {
	return Answer(c, &tele.CallbackResponse{Text: text})
}

// AckCallback answers the callback with an empty response if nothing answered it yet.
func AckCallback(c tele.Context) {
	_ = Answer(c, nil)
}

// IsNotModified reports whether err is Telegram's "message is not modified" reply,
// which happens when an edit leaves text and markup unchanged.
func IsNotModified(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "message is not modified")
}
