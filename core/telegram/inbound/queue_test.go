package inbound_test

import (
	"errors"
	"runtime"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/cpabot/core/telegram/inbound"

	tele "gopkg.in/telebot.v4"
)

func newBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true, Synchronous: true})
	require.NoError(t, err)
	return bot
}

func textUpdate(id int, userID int64, text string) tele.Update {
	return tele.Update{ID: id, Message: &tele.Message{
		ID:     id,
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}}
}

func TestQueueKeepsSenderOrder(t *testing.T) {
	const users, perUser = 200, 20

	q := inbound.New(inbound.Options{Workers: 8, QueueSize: 4})
	bot := newBot(t)
	bot.Use(q.Middleware)

	var mu sync.Mutex
	seen := make(map[int64][]int)
	bot.Handle(tele.OnText, func(c tele.Context) error {
		n, err := strconv.Atoi(c.Text())
		if err != nil {
			return err
		}
		runtime.Gosched()
		mu.Lock()
		seen[c.Sender().ID] = append(seen[c.Sender().ID], n)
		mu.Unlock()
		return nil
	})

	id := 0
	for i := 0; i < perUser; i++ {
		for u := int64(1); u <= users; u++ {
			id++
			bot.ProcessUpdate(textUpdate(id, u, strconv.Itoa(i)))
		}
	}
	q.Close()

	require.Len(t, seen, users)
	for u, got := range seen {
		require.Len(t, got, perUser, "user %d", u)
		for i, n := range got {
			assert.Equal(t, i, n, "user %d", u)
		}
	}
}

func TestQueueRunsInlineAfterClose(t *testing.T) {
	q := inbound.New(inbound.Options{Workers: 1})
	q.Close()
	q.Close()

	bot := newBot(t)
	bot.Use(q.Middleware)
	handled := false
	bot.Handle(tele.OnText, func(tele.Context) error {
		handled = true
		return nil
	})

	bot.ProcessUpdate(textUpdate(1, 5, "hi"))
	assert.True(t, handled)
}

func TestQueueReportsHandlerErrors(t *testing.T) {
	var mu sync.Mutex
	var got []error
	q := inbound.New(inbound.Options{Workers: 2, OnError: func(err error, c tele.Context) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	}})
	bot := newBot(t)
	bot.Use(q.Middleware)

	boom := errors.New("boom")
	bot.Handle(tele.OnText, func(c tele.Context) error {
		if c.Text() == "panic" {
			panic("handler exploded")
		}
		return boom
	})

	bot.ProcessUpdate(textUpdate(1, 9, "fail"))
	bot.ProcessUpdate(textUpdate(2, 9, "panic"))
	q.Close()

	require.Len(t, got, 2)
	assert.ErrorIs(t, got[0], boom)
	assert.ErrorContains(t, got[1], "handler exploded")
}

func TestKeyFallsBackToChat(t *testing.T) {
	bot := newBot(t)
	c := bot.NewContext(tele.Update{ChannelPost: &tele.Message{Chat: &tele.Chat{ID: -100}}})
	assert.Equal(t, int64(-100), inbound.Key(c))

	c = bot.NewContext(textUpdate(1, 42, "x"))
	assert.Equal(t, int64(42), inbound.Key(c))
}
