// Package eventbus is a typed publish/subscribe helper: one listener list per
// event kind, synchronous fan-out, and a panicking handler never stops delivery
// to the remaining handlers.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/mbank/internal/logging"
)

// Handler receives one published event.
type Handler[E any] func(ctx context.Context, event E)

type subscription[E any] struct {
	id uint64
	fn Handler[E]
}

// Bus delivers events of type E grouped by kind K. The zero value is not
// usable; call New.
type Bus[K comparable, E any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[K][]subscription[E]
	log      logging.Logger
}

func New[K comparable, E any](log logging.Logger) *Bus[K, E] {
	return &Bus[K, E]{handlers: make(map[K][]subscription[E]), log: log}
}

// Subscribe registers fn for kind and returns a function that removes it.
// The returned function is idempotent.
func (b *Bus[K, E]) Subscribe(kind K, fn Handler[E]) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription[E]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(kind, id) })
	}
}

func (b *Bus[K, E]) remove(kind K, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[kind]
	for i, s := range subs {
		if s.id == id {
			b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[kind]) == 0 {
		delete(b.handlers, kind)
	}
}

// Publish calls every handler of kind in subscription order. Handlers run on
// the caller's goroutine against a snapshot of the listener list, so they may
// subscribe or unsubscribe without deadlocking.
func (b *Bus[K, E]) Publish(ctx context.Context, kind K, event E) {
	b.mu.RLock()
	subs := append([]subscription[E](nil), b.handlers[kind]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, kind, s.fn, event)
	}
}

// Count returns the number of handlers registered for kind.
func (b *Bus[K, E]) Count(kind K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

func (b *Bus[K, E]) deliver(ctx context.Context, kind K, fn Handler[E], event E) {
	defer func() {
		if p := recover(); p != nil {
			b.log.Error(ctx, "event handler failed", "kind", fmt.Sprint(kind), "panic", fmt.Sprint(p))
		}
	}()
	fn(ctx, event)
}
