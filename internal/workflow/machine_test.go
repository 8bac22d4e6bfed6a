package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/cpabot/core/config"
	"github.com/m3rciful/cpabot/core/database/dbtest"
	coretelegram "github.com/m3rciful/cpabot/core/telegram"
	"github.com/m3rciful/cpabot/core/telegram/inbound"
	"github.com/m3rciful/cpabot/internal/content"

	tele "gopkg.in/telebot.v4"
)

type fakeWriter struct {
	mu       sync.Mutex
	added    [][2]string
	updates  map[string]string
	proxy    string
	existing map[string]bool
	err      error
}

func newFakeWriter(existing ...string) *fakeWriter {
	f := &fakeWriter{updates: map[string]string{}, existing: map[string]bool{}}
	for _, id := range existing {
		f.existing[id] = true
	}
	return f
}

func (f *fakeWriter) AddSection(_ context.Context, title, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.added = append(f.added, [2]string{title, body})
	return "new", nil
}

func (f *fakeWriter) UpdateSection(_ context.Context, id, body string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if !f.existing[id] {
		return false, nil
	}
	f.updates[id] = body
	return true, nil
}

func (f *fakeWriter) SetProxyText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.proxy = text
	return nil
}

func TestAddSectionDialog(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	m := NewMachine(nil, w)

	m.StartAdd(ctx, 1)
	entry, ok := m.Current(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingTitle, entry.Action)

	out, err := m.Handle(ctx, 1, "Intro")
	require.NoError(t, err)
	assert.Equal(t, TitleStored, out)
	entry, _ = m.Current(1)
	assert.Equal(t, Entry{Action: AwaitingContent, TempTitle: "Intro"}, entry)

	out, err = m.Handle(ctx, 1, "Body")
	require.NoError(t, err)
	assert.Equal(t, SectionAdded, out)
	assert.Equal(t, [][2]string{{"Intro", "Body"}}, w.added)
	assert.False(t, m.Active(1))
}

func TestStrayTextIsIgnored(t *testing.T) {
	w := newFakeWriter()
	m := NewMachine(nil, w)

	out, err := m.Handle(context.Background(), 5, "hello")
	require.NoError(t, err)
	assert.Equal(t, Ignored, out)
	assert.Empty(t, w.added)
	assert.False(t, m.Active(5))
}

func TestBlankTextKeepsDialogOpen(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(nil, newFakeWriter())
	m.StartAdd(ctx, 1)

	out, err := m.Handle(ctx, 1, "   ")
	require.NoError(t, err)
	assert.Equal(t, Ignored, out)
	entry, ok := m.Current(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingTitle, entry.Action)
}

func TestEditDialog(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter("s1")
	m := NewMachine(nil, w)

	m.StartEdit(ctx, 1, "s1")
	entry, _ := m.Current(1)
	assert.Equal(t, "s1", entry.SectionID)

	out, err := m.Handle(ctx, 1, "new body")
	require.NoError(t, err)
	assert.Equal(t, SectionUpdated, out)
	assert.Equal(t, "new body", w.updates["s1"])
	assert.False(t, m.Active(1))

	m.StartEdit(ctx, 1, "gone")
	out, err = m.Handle(ctx, 1, "x")
	require.NoError(t, err)
	assert.Equal(t, SectionMissing, out)
	assert.False(t, m.Active(1))
}

func TestProxyDialog(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	m := NewMachine(nil, w)

	m.StartProxyEdit(ctx, 1)
	out, err := m.Handle(ctx, 1, "proxy info")
	require.NoError(t, err)
	assert.Equal(t, ProxyUpdated, out)
	assert.Equal(t, "proxy info", w.proxy)
}

func TestStartReplacesPendingDialog(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(nil, newFakeWriter())

	m.StartAdd(ctx, 1)
	_, err := m.Handle(ctx, 1, "title")
	require.NoError(t, err)

	m.StartProxyEdit(ctx, 1)
	entry, _ := m.Current(1)
	assert.Equal(t, Entry{Action: AwaitingProxyText}, entry)
}

func TestCommitFailureKeepsDialog(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	m := NewMachine(nil, w)

	m.StartAdd(ctx, 1)
	_, err := m.Handle(ctx, 1, "Intro")
	require.NoError(t, err)

	w.err = errors.New("disk full")
	_, err = m.Handle(ctx, 1, "Body")
	require.Error(t, err)
	entry, ok := m.Current(1)
	require.True(t, ok)
	assert.Equal(t, AwaitingContent, entry.Action)

	w.err = nil
	out, err := m.Handle(ctx, 1, "Body")
	require.NoError(t, err)
	assert.Equal(t, SectionAdded, out)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	m := NewMachine(nil, newFakeWriter())

	assert.False(t, m.Cancel(ctx, 1))
	m.StartAdd(ctx, 1)
	assert.True(t, m.Cancel(ctx, 1))
	assert.False(t, m.Active(1))
}

func TestUsersAreIndependent(t *testing.T) {
	ctx := context.Background()
	w := newFakeWriter()
	m := NewMachine(nil, w)

	var wg sync.WaitGroup
	for u := int64(1); u <= 20; u++ {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			m.StartAdd(ctx, u)
			_, _ = m.Handle(ctx, u, "t")
			_, _ = m.Handle(ctx, u, "c")
		}(u)
	}
	wg.Wait()
	assert.Len(t, w.added, 20)
}

func TestConcurrentHandleSameUser(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		w := newFakeWriter()
		m := NewMachine(nil, w)
		m.StartAdd(ctx, 1)

		outs := make([]Outcome, 2)
		var wg sync.WaitGroup
		for j, text := range []string{"a", "b"} {
			wg.Add(1)
			go func(j int, text string) {
				defer wg.Done()
				out, err := m.Handle(ctx, 1, text)
				assert.NoError(t, err)
				outs[j] = out
			}(j, text)
		}
		wg.Wait()

		assert.ElementsMatch(t, []Outcome{TitleStored, SectionAdded}, outs)
		require.Len(t, w.added, 1)
		assert.NotEqual(t, w.added[0][0], w.added[0][1])
		assert.False(t, m.Active(1))
	}
}

// Title and body arrive as back-to-back updates; the bot must hand them to the
// machine in delivery order or the body would be stored as the title.
func TestBotDeliversDialogInOrder(t *testing.T) {
	const users = 500

	w := newFakeWriter()
	m := NewMachine(nil, w)

	settings := coretelegram.BotSettings(&coreconfig.Config{}, coretelegram.HTTPClientOptions{}, nil)
	settings.Offline = true
	bot, err := tele.NewBot(settings)
	require.NoError(t, err)

	q := inbound.New(inbound.Options{Workers: 8})
	bot.Use(q.Middleware)
	bot.Handle(tele.OnText, func(c tele.Context) error {
		_, err := m.Handle(context.Background(), c.Sender().ID, c.Text())
		return err
	})

	id := 0
	send := func(u int64, text string) {
		id++
		bot.ProcessUpdate(tele.Update{ID: id, Message: &tele.Message{
			ID:     id,
			Text:   text,
			Sender: &tele.User{ID: u},
			Chat:   &tele.Chat{ID: u},
		}})
	}
	for u := int64(1); u <= users; u++ {
		m.StartAdd(context.Background(), u)
		send(u, "TITLE")
		send(u, "BODY")
	}
	q.Close()

	require.Len(t, w.added, users)
	for _, pair := range w.added {
		assert.Equal(t, [2]string{"TITLE", "BODY"}, pair)
	}
}

func TestMachineCommitsToContentStore(t *testing.T) {
	ctx := context.Background()
	store := content.NewStore(dbtest.Open(t), content.Options{})
	m := NewMachine(nil, store)

	m.StartAdd(ctx, 1)
	_, err := m.Handle(ctx, 1, "Offers")
	require.NoError(t, err)
	_, err = m.Handle(ctx, 1, "How offers work")
	require.NoError(t, err)

	secs, err := store.ListSections(ctx)
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "Offers", secs[0].Title)

	m.StartEdit(ctx, 1, secs[0].ID)
	out, err := m.Handle(ctx, 1, "Updated")
	require.NoError(t, err)
	assert.Equal(t, SectionUpdated, out)

	sec, _, err := store.GetSection(ctx, secs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", sec.Content)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "proxy_updated", ProxyUpdated.String())
}
