package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/postmaster/internal/logger"
	"github.com/marmos91/postmaster/internal/telemetry"
)

// Handler reacts to an event.
type Handler func(ctx context.Context, ev Event) error

// Subscription identifies a registered handler. The zero value is inert.
type Subscription struct {
	name Name
	id   uint64
}

type entry struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to subscribed handlers. Safe for concurrent use.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Name][]entry
	nextID   uint64
	observer func(name Name, err error)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Name][]entry)}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name Name, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[name] = append(b.handlers[name], entry{id: b.nextID, handler: h})
	return Subscription{name: name, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[s.name]
	for i, e := range list {
		if e.id == s.id {
			b.handlers[s.name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[s.name]) == 0 {
		delete(b.handlers, s.name)
	}
}

// SetObserver registers fn to be called after every Publish with the
// joined handler error. Pass nil to remove it.
func (b *Bus) SetObserver(fn func(name Name, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = fn
}

// HandlerCount returns the number of handlers subscribed to name.
func (b *Bus) HandlerCount(name Name) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[name])
}

// Publish delivers ev to every handler subscribed to its name.
//
// Handlers may subscribe or unsubscribe while being dispatched; the set of
// handlers is fixed when Publish starts.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	list := make([]entry, len(b.handlers[ev.Name]))
	copy(list, b.handlers[ev.Name])
	observer := b.observer
	b.mu.RUnlock()

	ctx, span := telemetry.StartSpan(ctx, "event "+string(ev.Name), trace.WithAttributes(telemetry.Event(string(ev.Name), len(list))...))
	defer span.End()

	var errs []error
	for _, e := range list {
		if err := e.handler(ctx, ev); err != nil {
			logger.WarnCtx(ctx, "Event handler failed", logger.KeyEvent, string(ev.Name), logger.Err(err))
			errs = append(errs, fmt.Errorf("%s handler: %w", ev.Name, err))
		}
	}
	err := errors.Join(errs...)
	telemetry.RecordError(ctx, err)
	if observer != nil {
		observer(ev.Name, err)
	}
	return err
}

// Emit publishes ev after a committed change. Handler failures are logged by
// Publish and never undo the change, so they are not returned. A nil bus
// drops the event.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	if b == nil {
		return
	}
	_ = b.Publish(ctx, ev)
}
