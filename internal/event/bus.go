// Package event is a small in-process notification bus for written artifacts.
package event

import (
	"context"
	"log/slog"
	"sync"
)

// Written is published after a file has been completely written to the store.
type Written struct {
	Path string
}

// Handler reacts to a Written event.
type Handler func(ctx context.Context, ev Written)

// Bus delivers each published event to every subscriber on its own
// goroutine. Publish never blocks on handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	wg       sync.WaitGroup
}

// NewBus returns a Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every later Publish.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

// Publish dispatches ev. Handlers run detached from ctx cancellation so a
// finished request does not abort derivation work.
func (b *Bus) Publish(ctx context.Context, ev Written) {
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers))
	copy(hs, b.handlers)
	b.mu.RUnlock()

	hctx := context.WithoutCancel(ctx)
	for _, h := range hs {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.ErrorContext(hctx, "event handler panicked", "path", ev.Path, "panic", r)
				}
			}()
			h(hctx, ev)
		}(h)
	}
	published.Inc()
}

// Wait blocks until every handler started so far has returned, including
// handlers started by events published from inside other handlers.
func (b *Bus) Wait() {
	b.wg.Wait()
}
