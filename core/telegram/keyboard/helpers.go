// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import (
	"log/slog"

	"github.com/m3rciful/cpabot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackData is the Bot API limit for callback_data, in bytes.
const MaxCallbackData = 64

// InlineBtn is one inline button. URL buttons open a link; all others send a
// callback routed by Unique with Data as payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func (b InlineBtn) inline(markup *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *markup.URL(b.Text, b.URL).Inline()
	}
	btn := *markup.Data(b.Text, b.Unique, b.Data).Inline()
	// telebot sends "\f<unique>|<data>".
	if n := len(b.Unique) + len(b.Data) + 2; n > MaxCallbackData {
		logger.TG.Warn("callback data too long",
			slog.String("event", "keyboard.oversize"),
			slog.String("cb_key", b.Unique),
			slog.Int("count", n),
		)
	}
	return btn
}

// InlineButtons stacks buttons one per row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, len(buttons))
	for i, b := range buttons {
		rows[i] = []InlineBtn{b}
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows lays buttons out row by row. Empty rows are skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out := make([]tele.InlineButton, len(row))
		for i, b := range row {
			out[i] = b.inline(markup)
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, out)
	}
	return markup
}

// SingleCancelMarkup is a one-button keyboard that sends unique with payload "cancel".
func SingleCancelMarkup(unique, label string) *tele.ReplyMarkup {
	return InlineButtons([]InlineBtn{{Text: label, Unique: unique, Data: "cancel"}})
}
