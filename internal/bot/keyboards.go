package bot

import (
	"github.com/m3rciful/cpabot/core/telegram/keyboard"
	"github.com/m3rciful/cpabot/internal/content"

	tele "gopkg.in/telebot.v4"
)

// Callback keys.
const (
	cbCheckJoin      = "check_join"
	cbView           = "view"
	cbBackHome       = "back_home"
	cbNoop           = "noop"
	cbRequestProxy   = "request_proxy"
	cbStartQuiz      = "start_quiz"
	cbQuiz           = "quiz"
	cbAdminPanel     = "admin_panel"
	cbAdminAdd       = "admin_add"
	cbAdminDelete    = "admin_delete_list"
	cbDelete         = "delete"
	cbAdminEdit      = "admin_edit_list"
	cbEditSection    = "edit_sec"
	cbAdminReorder   = "admin_reorder"
	cbMove           = "move"
	cbAdminStats     = "admin_stats"
	cbAdminEditProxy = "admin_edit_proxy"
	cbAdminCancel    = "admin_cancel"
)

// joinMarkup offers the membership re-check and, when an invite link is
// configured, a button that opens the channel.
func joinMarkup(inviteLink string) *tele.ReplyMarkup {
	buttons := []keyboard.InlineBtn{{Text: btnCheckJoin, Unique: cbCheckJoin}}
	if inviteLink != "" {
		buttons = append(buttons, keyboard.InlineBtn{Text: btnOpenChannel, URL: inviteLink})
	}
	return keyboard.InlineButtons(buttons)
}

func mainMenuMarkup(sections []content.Section, admin bool) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(sections)+1)
	for _, s := range sections {
		buttons = append(buttons, keyboard.InlineBtn{Text: s.Title, Unique: cbView, Data: s.ID})
	}
	if admin {
		buttons = append(buttons, keyboard.InlineBtn{Text: btnAdminPanel, Unique: cbAdminPanel})
	}
	return keyboard.InlineButtons(buttons)
}

func adminPanelMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: btnAdd, Unique: cbAdminAdd},
		{Text: btnDelete, Unique: cbAdminDelete},
		{Text: btnReorder, Unique: cbAdminReorder},
		{Text: btnEdit, Unique: cbAdminEdit},
		{Text: btnEditProxy, Unique: cbAdminEditProxy},
		{Text: btnStats, Unique: cbAdminStats},
		{Text: btnBack, Unique: cbBackHome},
	})
}

func backToPanelMarkup(label string) *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: label, Unique: cbAdminPanel}})
}

// sectionPickMarkup lists sections with a prefix icon, each pointing at action|id.
func sectionPickMarkup(sections []content.Section, icon, action string) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(sections)+1)
	for _, s := range sections {
		buttons = append(buttons, keyboard.InlineBtn{Text: icon + " " + s.Title, Unique: action, Data: s.ID})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: btnBack, Unique: cbAdminPanel})
	return keyboard.InlineButtons(buttons)
}

func reorderMarkup(sections []content.Section) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(sections)+1)
	for _, s := range sections {
		rows = append(rows, []keyboard.InlineBtn{
			{Text: s.Title, Unique: cbNoop},
			{Text: btnUp, Unique: cbMove, Data: string(content.DirectionUp) + "|" + s.ID},
			{Text: btnDown, Unique: cbMove, Data: string(content.DirectionDown) + "|" + s.ID},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{{Text: btnBack, Unique: cbAdminPanel}})
	return keyboard.InlineButtonsRows(rows...)
}

func quizListMarkup(quizzes []content.Quiz) *tele.ReplyMarkup {
	buttons := make([]keyboard.InlineBtn, 0, len(quizzes)+1)
	for _, q := range quizzes {
		buttons = append(buttons, keyboard.InlineBtn{Text: q.Title, Unique: cbQuiz, Data: q.ID})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: btnBack, Unique: cbBackHome})
	return keyboard.InlineButtons(buttons)
}

func cancelMarkup() *tele.ReplyMarkup {
	return keyboard.SingleCancelMarkup(cbAdminCancel, btnCancel)
}
