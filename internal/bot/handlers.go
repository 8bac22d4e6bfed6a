package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/callbacks"
	"github.com/m3rciful/cpabot/core/telegram/format"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"
	"github.com/m3rciful/cpabot/internal/analytics"
	"github.com/m3rciful/cpabot/internal/content"
	"github.com/m3rciful/cpabot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

func withMarkup(m *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: m}
}

// edit replaces the callback's message, or sends a new one for plain messages.
// Re-rendering an unchanged screen is not an error.
func edit(c tele.Context, text string, markup *tele.ReplyMarkup, markdown bool) error {
	opts := withMarkup(markup)
	if markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	if err := c.EditOrSend(text, opts); err != nil && !tghelpers.IsNotModified(err) {
		return err
	}
	return nil
}

func (b *Bot) mainMenu(ctx context.Context, userID int64) (string, *tele.ReplyMarkup, error) {
	sections, err := b.content.ListSections(ctx)
	if err != nil {
		return "", nil, err
	}
	admin := b.gate.IsAdmin(userID)
	text := textWelcome
	if admin {
		text += textAdminHint
	}
	return text, mainMenuMarkup(sections, admin), nil
}

func (b *Bot) onStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	// Analytics never blocks the menu.
	if _, err := b.analytics.RegisterUser(ctx, analytics.User{
		ID:        sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
	}); err != nil {
		logger.LogEvent(ctx, logger.SVCAnalytics, slog.LevelError, "user.register_failed",
			slog.String("err", err.Error()),
		)
	}
	if err := b.analytics.LogInteraction(ctx, sender.ID); err != nil {
		logger.LogEvent(ctx, logger.SVCAnalytics, slog.LevelError, "interaction.log_failed",
			slog.String("err", err.Error()),
		)
	}

	if !b.gate.Allowed(ctx, sender.ID) {
		return tghelpers.SendText(c, fmt.Sprintf(textJoinRequired, b.inviteLink), withMarkup(joinMarkup(b.inviteLink)))
	}
	text, markup, err := b.mainMenu(ctx, sender.ID)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, text, markup)
}

func (b *Bot) onAdmin(c tele.Context) error {
	return tghelpers.SendMD(c, textAdminPanel, adminPanelMarkup())
}

func (b *Bot) onCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if !b.flow.Cancel(ctx, c.Sender().ID) {
		return tghelpers.SendText(c, textNothingToStop)
	}
	return tghelpers.SendText(c, textCancelled, withMarkup(backToPanelMarkup(btnBackToPanel)))
}

func (b *Bot) onCheckJoin(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if !b.gate.Allowed(ctx, userID) {
		return tghelpers.Alert(c, textNotJoinedYet)
	}
	sections, err := b.content.ListSections(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, textVerified, withMarkup(mainMenuMarkup(sections, b.gate.IsAdmin(userID))))
}

func (b *Bot) onView(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sec, ok, err := b.content.GetSection(ctx, callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	if !ok {
		return tghelpers.Alert(c, textSectionGone)
	}
	return tghelpers.SendRich(c,
		"📚 *"+format.Escape(sec.Title)+"*\n\n"+sec.Content,
		"📚 "+sec.Title+"\n\n"+sec.Content,
	)
}

func (b *Bot) onBackHome(c tele.Context) error {
	text, markup, err := b.mainMenu(tghelpers.BuildContext(c), c.Sender().ID)
	if err != nil {
		return err
	}
	return edit(c, text, markup, true)
}

func (b *Bot) onNoop(c tele.Context) error {
	return tghelpers.Answer(c, nil)
}

func (b *Bot) onRequestProxy(c tele.Context) error {
	text, err := b.content.ProxyText(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return tghelpers.SendRich(c, text, text)
}

func (b *Bot) onStartQuiz(c tele.Context) error {
	quizzes, err := b.content.ListQuizzes(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		return tghelpers.Alert(c, textNoQuizzes)
	}
	return edit(c, textQuizList, quizListMarkup(quizzes), false)
}

func (b *Bot) onQuiz(c tele.Context) error {
	q, ok, err := b.content.GetQuiz(tghelpers.BuildContext(c), callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	if !ok {
		return tghelpers.Alert(c, textQuizGone)
	}
	return tghelpers.SendRich(c,
		"🧠 *"+format.Escape(q.Title)+"*\n\n"+q.Content,
		"🧠 "+q.Title+"\n\n"+q.Content,
	)
}

func (b *Bot) onAdminPanel(c tele.Context) error {
	return edit(c, textAdminPanel, adminPanelMarkup(), true)
}

func (b *Bot) onAdminAdd(c tele.Context) error {
	b.flow.StartAdd(tghelpers.BuildContext(c), c.Sender().ID)
	return tghelpers.SendText(c, textAskTitle, withMarkup(cancelMarkup()))
}

func (b *Bot) renderDeleteList(ctx context.Context, c tele.Context) error {
	sections, err := b.content.ListSections(ctx)
	if err != nil {
		return err
	}
	return edit(c, textDeletePick, sectionPickMarkup(sections, "🗑", cbDelete), false)
}

func (b *Bot) onAdminDeleteList(c tele.Context) error {
	return b.renderDeleteList(tghelpers.BuildContext(c), c)
}

func (b *Bot) onDelete(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	deleted, err := b.content.DeleteSection(ctx, callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	if deleted {
		_ = tghelpers.Toast(c, textDeleted)
	} else {
		_ = tghelpers.Alert(c, textSectionGone)
	}
	return b.renderDeleteList(ctx, c)
}

func (b *Bot) onAdminEditList(c tele.Context) error {
	sections, err := b.content.ListSections(tghelpers.BuildContext(c))
	if err != nil {
		return err
	}
	return edit(c, textEditPick, sectionPickMarkup(sections, "✏️", cbEditSection), false)
}

func (b *Bot) onEditSection(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sec, ok, err := b.content.GetSection(ctx, callbacks.CallbackPayload(c))
	if err != nil {
		return err
	}
	if !ok {
		return tghelpers.Alert(c, textSectionGone)
	}
	b.flow.StartEdit(ctx, c.Sender().ID, sec.ID)
	return tghelpers.SendText(c, fmt.Sprintf(textEditPrompt, sec.Title, sec.Content), withMarkup(cancelMarkup()))
}

func (b *Bot) renderReorder(ctx context.Context, c tele.Context) error {
	sections, err := b.content.ListSections(ctx)
	if err != nil {
		return err
	}
	return edit(c, textReorder, reorderMarkup(sections), false)
}

func (b *Bot) onAdminReorder(c tele.Context) error {
	return b.renderReorder(tghelpers.BuildContext(c), c)
}

func (b *Bot) onMove(c tele.Context) error {
	rawDir, id, err := callbacks.PayloadPair(c, "|")
	if err != nil {
		return nil
	}
	dir, ok := content.ParseDirection(rawDir)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if _, err := b.content.MoveSection(ctx, id, dir); err != nil {
		return err
	}
	return b.renderReorder(ctx, c)
}

func (b *Bot) onAdminStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	st, err := b.analytics.Stats(ctx)
	if err != nil {
		return err
	}
	recent, err := b.analytics.RecentUsers(ctx, RecentUsersShown)
	if err != nil {
		return err
	}
	return edit(c, renderStats(st, recent), backToPanelMarkup(btnBack), true)
}

func renderStats(st analytics.Stats, recent []analytics.User) string {
	var sb strings.Builder
	sb.WriteString(textStatsHeader)
	fmt.Fprintf(&sb, textStatsBody, st.TotalUsers, st.TotalInteractions, st.ActiveToday, RecentUsersShown)
	for _, u := range recent {
		username := u.Username
		if username == "" {
			username = "NoUser"
		}
		fmt.Fprintf(&sb, textStatsLine, format.Escape(u.FirstName), format.Escape(username))
	}
	return sb.String()
}

func (b *Bot) onAdminEditProxy(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	current, err := b.content.ProxyText(ctx)
	if err != nil {
		return err
	}
	b.flow.StartProxyEdit(ctx, c.Sender().ID)
	return tghelpers.SendText(c, fmt.Sprintf(textProxyPrompt, current), withMarkup(cancelMarkup()))
}

func (b *Bot) onAdminCancel(c tele.Context) error {
	b.flow.Cancel(tghelpers.BuildContext(c), c.Sender().ID)
	return edit(c, textCancelled, backToPanelMarkup(btnBackToPanel), false)
}

func (b *Bot) onDialogText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text := c.Text()
	outcome, err := b.flow.Handle(ctx, c.Sender().ID, text)
	if err != nil {
		_ = tghelpers.SendText(c, textSaveFailed, withMarkup(cancelMarkup()))
		return err
	}

	back := withMarkup(backToPanelMarkup(btnBackToPanel))
	switch outcome {
	case workflow.TitleStored:
		return tghelpers.SendText(c, fmt.Sprintf(textTitleStored, text), withMarkup(cancelMarkup()))
	case workflow.SectionAdded:
		return tghelpers.SendText(c, textSectionAdded, back)
	case workflow.SectionUpdated:
		return tghelpers.SendText(c, textUpdated, back)
	case workflow.SectionMissing:
		return tghelpers.SendText(c, textSectionFailed, back)
	case workflow.ProxyUpdated:
		return tghelpers.SendText(c, textProxyUpdated, back)
	}
	return nil
}

func (b *Bot) onChannelPost(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	logger.TG.Info("channel post received",
		slog.String("event", "tg.channel_post"),
		slog.Int64("channel_id", chat.ID),
		slog.String("title", logger.SanitizeLimit(chat.Title, 128)),
	)
	return nil
}
