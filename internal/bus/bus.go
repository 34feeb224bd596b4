// Package bus is the in-process change notification bus.
//
// WHY NOT A GLOBAL?
// Controllers on different screens need to tell each other "library data
// changed, refresh yourself". A package-level handler set would couple every
// test to every other test through import side effects, so the bus is a
// value: one is created per application instance and handed to each
// controller in its constructor.
//
// DELIVERY:
// Emit is synchronous and best-effort. Handlers run in subscription order on
// the emitter's goroutine; a handler that panics is recovered, logged and
// skipped, and the remaining handlers still run. Handlers that need to do
// slow work (a network refresh) should start their own goroutine.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
)

// Topic names a kind of change.
type Topic string

// LibraryChanged is emitted after every successful library or review
// mutation.
const LibraryChanged Topic = "library.changed"

// Event is one notification. Source identifies the emitter so a controller
// can ignore events it produced itself.
type Event struct {
	Topic  Topic
	Source string
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.Mutex
	subs   []subscription
	nextID uint64
	closed bool
	logger *slog.Logger
}

// New creates an empty bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers h and returns a function that removes it. The
// returned function is safe to call more than once. Subscribing to a closed
// bus returns a no-op unsubscribe.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || h == nil {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, handler: h})

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			// Copy rather than splice in place: an Emit in progress may be
			// ranging over the old slice.
			next := make([]subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			next = append(next, b.subs[i+1:]...)
			b.subs = next
			return
		}
	}
}

// Emit delivers e to every current subscriber. The subscriber list is
// snapshotted first, so handlers may subscribe or unsubscribe while being
// called without deadlocking.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := b.subs
	b.mu.Unlock()

	for _, s := range subs {
		b.deliver(s, e)
	}
}

func (b *Bus) deliver(s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("bus handler panicked",
				slog.String("topic", string(e.Topic)),
				slog.String("source", e.Source),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.handler(e)
}

// Len reports the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops every subscriber. Emit and Subscribe become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
}
