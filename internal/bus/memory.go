package bus

import (
	"context"
	"sync"
	"time"

	"github.com/lovbench/lovrank/internal/pkg/errors"
	"github.com/lovbench/lovrank/internal/pkg/logger"
)

const queueSize = 256

// subscription delivers the events of its pattern to one handler, in
// publish order, from its own goroutine.
type subscription struct {
	pattern string
	handler Handler
	queue   chan delivery
}

type delivery struct {
	ctx   context.Context
	event Event
}

// MemoryBus is the in-process bus of a run. Every subscriber sees the
// events it matches in the order they were published.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool

	drain time.Duration
	wg    sync.WaitGroup
	log   *logger.Logger
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Default()
	}
	return &MemoryBus{
		drain: 10 * time.Second,
		log:   log.WithComponent("bus"),
	}
}

// Publish queues event for every subscription matching topic. It blocks
// while a subscriber's queue is full.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}
	for _, s := range b.subs {
		if !Match(s.pattern, topic) {
			continue
		}
		select {
		case s.queue <- delivery{ctx: ctx, event: event}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe starts delivering events matching pattern to handler.
func (b *MemoryBus) Subscribe(_ context.Context, pattern string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	s := &subscription{pattern: pattern, handler: handler, queue: make(chan delivery, queueSize)}
	b.subs = append(b.subs, s)
	b.wg.Add(1)
	go b.deliver(s)
	return nil
}

func (b *MemoryBus) deliver(s *subscription) {
	defer b.wg.Done()
	for d := range s.queue {
		if err := s.handler(d.ctx, d.event); err != nil {
			b.log.Warn("Event handler failed", "pattern", s.pattern, "type", d.event.Type, "run", d.event.RunID, "error", err)
		}
	}
}

// Close stops accepting events and waits for queued events to be
// delivered, up to the drain timeout.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.queue)
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(b.drain):
		b.log.Warn("Event drain timeout reached, some events were not delivered", "timeout", b.drain)
	}
	return nil
}
