// Package event implements the runtime event bus. Each event name owns a
// queue drained by a single goroutine, so deliveries for one name keep their
// emit order. Every handler runs isolated: an error or panic is captured and
// reported without preventing the remaining handlers from running.
package event

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
	"github.com/hupe1980/plugmesh/observability"
)

// ErrClosed is returned when emitting on a closed bus.
var ErrClosed = errors.New("event bus closed")

// Options configures a Bus.
type Options struct {
	// QueueSize is the buffer of each per-event queue.
	QueueSize int
	// OnError receives every captured handler failure. Defaults to logging.
	OnError func(event core.EventType, err error)
	Logger  logging.Logger
	Metrics *observability.Metrics
}

type delivery struct {
	ctx      context.Context
	payload  core.EventPayload
	handlers []core.EventHandler
}

// Bus is a multi-subscriber notification channel keyed by event name.
type Bus struct {
	mu       sync.RWMutex
	handlers map[core.EventType][]core.EventHandler
	queues   map[core.EventType]chan delivery
	closed   bool
	done     chan struct{}
	senders  sync.WaitGroup // emits between the closed check and the send
	wg       sync.WaitGroup
	opts     Options
}

// NewBus creates an empty bus.
func NewBus(optFns ...func(o *Options)) *Bus {
	opts := Options{QueueSize: 64, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	b := &Bus{
		handlers: make(map[core.EventType][]core.EventHandler),
		queues:   make(map[core.EventType]chan delivery),
		done:     make(chan struct{}),
		opts:     opts,
	}

	if b.opts.OnError == nil {
		b.opts.OnError = func(event core.EventType, err error) {
			b.opts.Logger.Error("event handler failed", "event", event, "error", err)
		}
	}

	return b
}

// On appends handler to the subscribers of event.
func (b *Bus) On(event core.EventType, handler core.EventHandler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], handler)
	b.mu.Unlock()
}

// Handlers returns the number of subscribers of event.
func (b *Bus) Handlers(event core.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.handlers[event])
}

// Emit enqueues payload for every handler of each named event and returns
// without waiting for the handlers. It blocks only while a queue is full.
func (b *Bus) Emit(ctx context.Context, payload core.EventPayload, events ...core.EventType) error {
	for _, event := range events {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrClosed
		}

		handlers := append([]core.EventHandler(nil), b.handlers[event]...)
		if len(handlers) == 0 {
			b.mu.Unlock()
			b.opts.Metrics.IncEvent(string(event))

			continue
		}

		q := b.queue(event)
		b.senders.Add(1)
		b.mu.Unlock()

		b.opts.Metrics.IncEvent(string(event))

		if err := b.send(ctx, q, delivery{ctx: context.WithoutCancel(ctx), payload: payload, handlers: handlers}); err != nil {
			return err
		}
	}

	return nil
}

// send delivers d unless ctx is done or the bus starts closing. Queues are
// only closed once every in-flight send has returned.
func (b *Bus) send(ctx context.Context, q chan delivery, d delivery) error {
	defer b.senders.Done()

	select {
	case q <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return ErrClosed
	}
}

// EmitSync runs every handler of each named event inline, in order, and
// returns the joined handler failures.
func (b *Bus) EmitSync(ctx context.Context, payload core.EventPayload, events ...core.EventType) error {
	var errs []error

	for _, event := range events {
		b.mu.RLock()
		handlers := append([]core.EventHandler(nil), b.handlers[event]...)
		b.mu.RUnlock()

		b.opts.Metrics.IncEvent(string(event))

		errs = append(errs, b.dispatch(ctx, event, payload, handlers)...)
	}

	return errors.Join(errs...)
}

// queue must be called with b.mu held.
func (b *Bus) queue(event core.EventType) chan delivery {
	q, ok := b.queues[event]
	if ok {
		return q
	}

	q = make(chan delivery, b.opts.QueueSize)
	b.queues[event] = q

	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		for d := range q {
			b.dispatch(d.ctx, event, d.payload, d.handlers)
		}
	}()

	return q
}

func (b *Bus) dispatch(ctx context.Context, event core.EventType, payload core.EventPayload, handlers []core.EventHandler) []error {
	var errs []error

	for _, h := range handlers {
		if err := invoke(ctx, h, payload); err != nil {
			err = fmt.Errorf("event %s: %w", event, err)
			errs = append(errs, err)

			b.opts.Metrics.IncEventFailure(string(event))
			b.opts.OnError(event, err)
		}
	}

	return errs
}

func invoke(ctx context.Context, h core.EventHandler, payload core.EventPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	return h(ctx, payload)
}

// Close stops accepting events and waits until queued deliveries are handled
// or ctx is done. Emits blocked on a full queue return ErrClosed.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}

	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.senders.Wait()

	b.mu.Lock()
	for _, q := range b.queues {
		close(q)
	}
	b.mu.Unlock()

	done := make(chan struct{})

	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
