// Package inbound runs update handlers on background workers. Updates from the
// same sender always land on the same worker, so a user's messages are handled
// one at a time in the order Telegram delivered them.
package inbound

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/m3rciful/cpabot/core/logger"
	tghelpers "github.com/m3rciful/cpabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.inbound"

// Options controls the worker pool. Zero values take defaults.
type Options struct {
	Workers   int
	QueueSize int
	// OnError receives errors returned by handlers, which the bot no longer sees
	// once the queue has taken the update.
	OnError func(error, tele.Context)
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 128
	}
}

type task struct {
	c    tele.Context
	next tele.HandlerFunc
}

// Queue must be installed as the outermost middleware of a bot created with
// Synchronous set: the bot then hands over updates in poll order and the queue
// fans them out per sender.
type Queue struct {
	opts   Options
	shards []chan task

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// New starts the workers.
func New(opts Options) *Queue {
	opts.defaults()
	q := &Queue{opts: opts, shards: make([]chan task, opts.Workers)}
	q.wg.Add(opts.Workers)
	for i := range q.shards {
		q.shards[i] = make(chan task, opts.QueueSize)
		go q.worker(q.shards[i])
	}
	return q
}

// Key identifies the ordering domain of an update: the sender, or the chat for
// channel posts that have none.
func Key(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	if ch := c.Chat(); ch != nil {
		return ch.ID
	}
	return 0
}

// Middleware queues the rest of the chain. A full shard blocks the caller,
// which holds back polling instead of dropping updates. After Close the chain
// runs inline.
func (q *Queue) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		q.mu.RLock()
		if q.closed {
			q.mu.RUnlock()
			return next(c)
		}
		q.shards[uint64(Key(c))%uint64(len(q.shards))] <- task{c: c, next: next}
		q.mu.RUnlock()
		return nil
	}
}

// Close stops accepting updates and waits until queued ones are handled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, s := range q.shards {
		close(s)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker(tasks <-chan task) {
	defer q.wg.Done()
	for t := range tasks {
		if err := q.run(t); err != nil && q.opts.OnError != nil {
			q.opts.OnError(err, t.c)
		}
	}
}

func (q *Queue) run(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(tghelpers.BuildContext(t.c), component, "inbound.panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("inbound: handler panic: %v", r)
		}
	}()
	return t.next(t.c)
}
