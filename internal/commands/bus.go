package commands

import (
	"context"
	"fmt"
	"sync"
)

// Bus routes commands to their registered handler by command type. Every
// mutation in the service layer enters through here, giving validation and
// idempotency a single choke point.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]Handler)}
}

// Register binds a handler to a command type, replacing any previous one.
func (b *Bus) Register(commandType string, handler Handler) {
	b.mu.Lock()
	b.handlers[commandType] = handler
	b.mu.Unlock()
}

func (b *Bus) Execute(ctx context.Context, cmd Command) (Result, error) {
	b.mu.RLock()
	h, ok := b.handlers[cmd.CommandType()]
	b.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrHandlerNotFound, cmd.CommandType())
	}
	return h.Handle(ctx, cmd)
}
