package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsStacksRows(t *testing.T) {
	m := InlineButtons([]InlineBtn{
		{Text: "A", Unique: "view", Data: "1"},
		{Text: "Join", URL: "https://t.me/+abc"},
	})
	require.Len(t, m.InlineKeyboard, 2)
	assert.Equal(t, "view", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "1", m.InlineKeyboard[0][0].Data)
	assert.Equal(t, "https://t.me/+abc", m.InlineKeyboard[1][0].URL)
	assert.Empty(t, m.InlineKeyboard[1][0].Data)
}

func TestInlineButtonsRowsSkipsEmpty(t *testing.T) {
	m := InlineButtonsRows(
		[]InlineBtn{{Text: "x", Unique: "noop"}, {Text: "▲", Unique: "move", Data: "up|1"}},
		nil,
		[]InlineBtn{{Text: "back", Unique: "admin_panel"}},
	)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "up|1", m.InlineKeyboard[0][1].Data)
}

func TestSingleCancelMarkup(t *testing.T) {
	m := SingleCancelMarkup("admin_cancel", "Cancel")
	require.Len(t, m.InlineKeyboard, 1)
	assert.Equal(t, "Cancel", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "admin_cancel", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "cancel", m.InlineKeyboard[0][0].Data)
}
