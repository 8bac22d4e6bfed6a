package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cpabot/core/database/dbtest"
	tg "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/router"
	"github.com/m3rciful/cpabot/internal/access"
	"github.com/m3rciful/cpabot/internal/analytics"
	"github.com/m3rciful/cpabot/internal/content"
	"github.com/m3rciful/cpabot/internal/workflow"
)

const (
	adminID  int64 = 100
	memberID int64 = 200
	guestID  int64 = 300
)

type message struct {
	text string
	opts []interface{}
}

func (m message) markup() *tele.ReplyMarkup {
	for _, o := range m.opts {
		if so, ok := o.(*tele.SendOptions); ok {
			return so.ReplyMarkup
		}
	}
	return nil
}

type fakeContext struct {
	tele.Context
	sender    *tele.User
	cb        *tele.Callback
	text      string
	store     map[string]interface{}
	sent      []message
	edited    []message
	responses []*tele.CallbackResponse
}

func newMessage(userID int64, text string) *fakeContext {
	return &fakeContext{sender: &tele.User{ID: userID, FirstName: "U", Username: "u"}, text: text, store: map[string]interface{}{}}
}

func newCallback(userID int64, data string) *fakeContext {
	c := newMessage(userID, "")
	c.cb = &tele.Callback{Data: "\f" + data, Message: &tele.Message{ID: 1}}
	return c
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Callback() *tele.Callback { return f.cb }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 1, Callback: f.cb} }
func (f *fakeContext) Get(key string) interface{} {
	return f.store[key]
}
func (f *fakeContext) Set(key string, val interface{}) { f.store[key] = val }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, message{text: what.(string), opts: opts})
	return nil
}

func (f *fakeContext) EditOrSend(what interface{}, opts ...interface{}) error {
	f.edited = append(f.edited, message{text: what.(string), opts: opts})
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) == 0 {
		f.responses = append(f.responses, &tele.CallbackResponse{})
		return nil
	}
	f.responses = append(f.responses, resp[0])
	return nil
}

type fixture struct {
	bot       *Bot
	content   *content.Store
	analytics *analytics.Store
	flow      *workflow.Machine
	reg       *tg.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	cs := content.NewStore(db, content.Options{})
	as := analytics.NewStore(db)
	flow := workflow.NewMachine(nil, cs)
	gate := access.NewGate([]int64{adminID}, "@cpa", access.MembershipLookupFunc(func(_ context.Context, _ string, id int64) (string, error) {
		if id == memberID {
			return access.StatusMember, nil
		}
		return access.StatusLeft, nil
	}))
	b := New(Deps{Content: cs, Analytics: as, Gate: gate, Workflow: flow, InviteLink: "https://t.me/+cpa"})
	reg := tg.NewRegistry()
	require.NoError(t, b.Register(reg))
	return &fixture{bot: b, content: cs, analytics: as, flow: flow, reg: reg}
}

func (f *fixture) callback(t *testing.T, c *fakeContext) {
	t.Helper()
	route := router.CallbackRoute(f.reg, router.CallbackOptions{
		Guard: f.bot.guard,
		Open:  map[string]struct{}{cbCheckJoin: {}},
	})
	require.NoError(t, route.Handler(c))
}

func buttons(m *tele.ReplyMarkup) []tele.InlineButton {
	var out []tele.InlineButton
	for _, row := range m.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func TestStartShowsMenuAndRecordsAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.content.AddSection(ctx, "Intro", "Body")
	require.NoError(t, err)

	c := newMessage(memberID, "/start")
	require.NoError(t, f.bot.onStart(c))
	require.Len(t, c.sent, 1)
	assert.Equal(t, textWelcome, c.sent[0].text)
	btns := buttons(c.sent[0].markup())
	require.Len(t, btns, 1)
	assert.Equal(t, "Intro", btns[0].Text)
	assert.Equal(t, cbView, btns[0].Unique)

	st, err := f.analytics.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, analytics.Stats{TotalUsers: 1, TotalInteractions: 1, ActiveToday: 1}, st)
}

func TestStartAddsAdminButtonForAdmins(t *testing.T) {
	f := newFixture(t)
	c := newMessage(adminID, "/start")
	require.NoError(t, f.bot.onStart(c))
	require.Len(t, c.sent, 1)
	assert.Equal(t, textWelcome+textAdminHint, c.sent[0].text)
	btns := buttons(c.sent[0].markup())
	require.Len(t, btns, 1)
	assert.Equal(t, cbAdminPanel, btns[0].Unique)
}

func TestStartAsksGuestsToJoin(t *testing.T) {
	f := newFixture(t)
	c := newMessage(guestID, "/start")
	require.NoError(t, f.bot.onStart(c))
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "https://t.me/+cpa")
	btns := buttons(c.sent[0].markup())
	require.Len(t, btns, 2)
	assert.Equal(t, cbCheckJoin, btns[0].Unique)
	assert.Equal(t, "https://t.me/+cpa", btns[1].URL)

	st, err := f.analytics.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsers, "guests are still counted")
}

func TestGuestCallbacksAreGated(t *testing.T) {
	f := newFixture(t)
	id, err := f.content.AddSection(context.Background(), "Intro", "Body")
	require.NoError(t, err)

	c := newCallback(guestID, cbView+"|"+id)
	f.callback(t, c)
	require.Len(t, c.responses, 1)
	assert.True(t, c.responses[0].ShowAlert)
	assert.Equal(t, textJoinAlert, c.responses[0].Text)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, "https://t.me/+cpa")
}

func TestCheckJoinIsNotGated(t *testing.T) {
	f := newFixture(t)

	c := newCallback(guestID, cbCheckJoin)
	f.callback(t, c)
	require.Len(t, c.responses, 1)
	assert.Equal(t, textNotJoinedYet, c.responses[0].Text)
	assert.Empty(t, c.sent)

	ok := newCallback(memberID, cbCheckJoin)
	f.callback(t, ok)
	require.Len(t, ok.sent, 1)
	assert.Equal(t, textVerified, ok.sent[0].text)
	require.Len(t, ok.responses, 1, "router acknowledges the callback")
}

func TestViewSection(t *testing.T) {
	f := newFixture(t)
	id, err := f.content.AddSection(context.Background(), "How_to", "Body")
	require.NoError(t, err)

	c := newCallback(memberID, cbView+"|"+id)
	f.callback(t, c)
	require.Len(t, c.sent, 1)
	assert.Equal(t, "📚 *How\\_to*\n\nBody", c.sent[0].text)

	missing := newCallback(memberID, cbView+"|nope")
	f.callback(t, missing)
	assert.Empty(t, missing.sent)
	require.Len(t, missing.responses, 1)
	assert.Equal(t, textSectionGone, missing.responses[0].Text)
}

func TestAdminCallbacksIgnoreMembers(t *testing.T) {
	f := newFixture(t)
	c := newCallback(memberID, cbAdminAdd)
	f.callback(t, c)
	assert.Empty(t, c.sent)
	assert.False(t, f.flow.Active(memberID))
}

func TestAdminAddsSectionThroughDialog(t *testing.T) {
	f := newFixture(t)

	f.callback(t, newCallback(adminID, cbAdminAdd))
	require.True(t, f.flow.Active(adminID))

	d := dialog{f.bot}
	assert.True(t, d.InProgress(adminID))

	title := newMessage(adminID, "Offers")
	require.NoError(t, d.HandleText(title))
	require.Len(t, title.sent, 1)
	assert.Contains(t, title.sent[0].text, "Offers")

	body := newMessage(adminID, "All about offers")
	require.NoError(t, d.HandleText(body))
	require.Len(t, body.sent, 1)
	assert.Equal(t, textSectionAdded, body.sent[0].text)
	assert.False(t, d.InProgress(adminID))

	secs, err := f.content.ListSections(context.Background())
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "All about offers", secs[0].Content)
}

func TestAdminEditsProxyText(t *testing.T) {
	f := newFixture(t)

	c := newCallback(adminID, cbAdminEditProxy)
	f.callback(t, c)
	require.Len(t, c.sent, 1)
	assert.Contains(t, c.sent[0].text, content.ProxyPlaceholder)

	msg := newMessage(adminID, "Use proxy X")
	require.NoError(t, f.bot.onDialogText(msg))
	assert.Equal(t, textProxyUpdated, msg.sent[0].text)

	proxy := newCallback(memberID, cbRequestProxy)
	f.callback(t, proxy)
	require.Len(t, proxy.sent, 1)
	assert.Equal(t, "Use proxy X", proxy.sent[0].text)
}

func TestAdminCancelClosesDialog(t *testing.T) {
	f := newFixture(t)
	f.callback(t, newCallback(adminID, cbAdminAdd))

	c := newCallback(adminID, cbAdminCancel)
	f.callback(t, c)
	assert.False(t, f.flow.Active(adminID))
	require.Len(t, c.edited, 1)
	assert.Equal(t, textCancelled, c.edited[0].text)
}

func TestMoveReordersAndRerenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.content.AddSection(ctx, "A", "")
	require.NoError(t, err)
	b, err := f.content.AddSection(ctx, "B", "")
	require.NoError(t, err)

	c := newCallback(adminID, cbMove+"|up|"+b)
	f.callback(t, c)

	secs, err := f.content.ListSections(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", secs[0].Title)
	require.Len(t, c.edited, 1)
	first := c.edited[0].markup().InlineKeyboard[0]
	assert.Equal(t, "B", first[0].Text)
	assert.Equal(t, "up|"+b, first[1].Data)
}

func TestDeleteRerendersList(t *testing.T) {
	f := newFixture(t)
	id, err := f.content.AddSection(context.Background(), "Gone soon", "")
	require.NoError(t, err)

	c := newCallback(adminID, cbDelete+"|"+id)
	f.callback(t, c)
	require.Len(t, c.responses, 1)
	assert.Equal(t, textDeleted, c.responses[0].Text)
	require.Len(t, c.edited, 1)
	assert.Len(t, buttons(c.edited[0].markup()), 1, "only the back button remains")
}

func TestStartQuizWithoutQuizzes(t *testing.T) {
	f := newFixture(t)
	c := newCallback(memberID, cbStartQuiz)
	f.callback(t, c)
	require.Len(t, c.responses, 1)
	assert.Equal(t, textNoQuizzes, c.responses[0].Text)
	assert.True(t, c.responses[0].ShowAlert)
}

func TestRenderStatsEscapesNames(t *testing.T) {
	out := renderStats(analytics.Stats{TotalUsers: 2, TotalInteractions: 5, ActiveToday: 1}, []analytics.User{
		{FirstName: "Ann_a", Username: "ann"},
		{FirstName: "Bob"},
	})
	assert.Contains(t, out, "Total users: 2")
	assert.Contains(t, out, "- Ann\\_a (@ann)")
	assert.Contains(t, out, "- Bob (@NoUser)")
}

type fakeMemberAPI struct {
	role tele.MemberStatus
	err  error
	chat string
	user string
}

func (f *fakeMemberAPI) ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error) {
	f.chat, f.user = chat.Recipient(), user.Recipient()
	if f.err != nil {
		return nil, f.err
	}
	return &tele.ChatMember{Role: f.role}, nil
}

func TestMembershipLookupAdapter(t *testing.T) {
	api := &fakeMemberAPI{role: tele.Administrator}
	lookup := NewMembershipLookup(api)

	status, err := lookup.MembershipStatus(context.Background(), "@cpa", 42)
	require.NoError(t, err)
	assert.Equal(t, access.StatusAdministrator, status)
	assert.Equal(t, "@cpa", api.chat)
	assert.Equal(t, "42", api.user)

	api.err = errors.New("chat not found")
	_, err = lookup.MembershipStatus(context.Background(), "@cpa", 42)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lookup.MembershipStatus(ctx, "@cpa", 42)
	require.ErrorIs(t, err, context.Canceled)
}
