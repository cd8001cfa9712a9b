package websocket

import (
	"context"
	"encoding/json"

	"bazaar-chat/internal/events"
)

// LocalBridge pushes in-process events straight to this node's clients
// without the Redis round trip. Remote nodes get the same events through
// the outbox drain and RedisBridge.
type LocalBridge struct {
	hub *Hub
}

func NewLocalBridge(bus *events.Bus, hub *Hub) *LocalBridge {
	b := &LocalBridge{hub: hub}
	if bus != nil {
		bus.SubscribeAll(b.relay)
	}
	return b
}

func (b *LocalBridge) relay(ctx context.Context, env events.Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		return
	}
	for _, channel := range events.ResolveChannels(env) {
		b.hub.Broadcast(channel, payload)
	}
}
