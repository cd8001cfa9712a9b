package websocket

import (
	"context"

	"bazaar-chat/internal/events"
)

// Subscriber is the pub/sub consumption side the bridge listens on.
type Subscriber interface {
	SubscribePatterns(ctx context.Context, patterns []string, handle func(channel string, payload []byte)) error
}

// RedisBridge relays events published on Redis into the local hub, so
// clients connected to another node still see them.
type RedisBridge struct {
	subscriber Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	patterns := []string{
		events.ChannelPrefixConversation + "*",
		events.ChannelPrefixUser + "*",
	}
	return b.subscriber.SubscribePatterns(ctx, patterns, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
