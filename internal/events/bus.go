package events

import (
	"context"
	"sync"
)

// Handler processes one event. Handlers must not block; slow consumers
// should hand off to their own goroutines.
type Handler func(ctx context.Context, env Envelope)

// Bus is the in-process event dispatcher. Services publish after successful
// mutations; the notification aggregator and the websocket bridge subscribe.
// Delivery is synchronous and in publish order per publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
	b.mu.Unlock()
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	b.all = append(b.all, h)
	b.mu.Unlock()
}

// Publish dispatches env to all matching handlers.
func (b *Bus) Publish(ctx context.Context, env Envelope) {
	b.mu.RLock()
	typed := b.handlers[env.EventType]
	all := b.all
	b.mu.RUnlock()

	for _, h := range typed {
		h(ctx, env)
	}
	for _, h := range all {
		h(ctx, env)
	}
}
