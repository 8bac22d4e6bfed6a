// Package sender runs outbound Telegram calls on background workers with retries.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/cpabot/core/logger"
	"github.com/m3rciful/cpabot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the buffer of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously. Jobs for the same
// chat always land on the same worker, so replies keep the order they were sent in.
type Dispatcher struct {
	opts   Options
	queues []chan job
	next   atomic.Uint64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	errs   atomic.Uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDispatcher starts the workers. Zero options fall back to defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan job, opts.Workers),
		sleep:  sleepCtx,
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan job, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.queues))
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		return d.queues[uint64(chatID)%n]
	}
	return d.queues[d.next.Add(1)%n]
}

// Enqueue schedules run. The closure must be safe to call again when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.shard(ctx) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(q <-chan job) {
	defer d.wg.Done()
	for j := range q {
		if err := d.handle(j); err != nil {
			d.errs.Add(1)
		}
	}
}

func (d *Dispatcher) handle(j job) error {
	// The update context may already be done when the job runs; only its values matter here.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			if attempt > 1 || logger.ShouldSampleDebug() {
				logger.Debug(ctx, component, "send.ok", append(jobAttrs(j),
					slog.Int("attempts", attempt),
					slog.Duration("duration", time.Since(start)),
				)...)
			}
			return nil
		}

		delay, flood := netutil.RetryAfter(err)
		if !flood {
			if !netutil.ShouldRetry(err) {
				break
			}
			delay = d.opts.RetryBackoff * time.Duration(attempt)
		}
		if attempt == attempts {
			break
		}
		logger.Debug(ctx, component, "send.retry", append(jobAttrs(j),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", delay),
			slog.String("err_kind", netutil.Kind(err)),
		)...)
		if serr := d.sleep(ctx, delay); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}

	logger.Error(ctx, component, "send.fail", append(jobAttrs(j),
		slog.String("err", netutil.Redact(err)),
		slog.String("err_kind", netutil.Kind(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
