package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
)

// Subscriber consumes pub/sub patterns and hands raw payloads to a callback.
type Subscriber struct {
	client *goredis.Client
}

func NewSubscriber(client *goredis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// SubscribePatterns blocks until ctx ends, invoking handle for every message
// published on a matching channel.
func (s *Subscriber) SubscribePatterns(ctx context.Context, patterns []string, handle func(channel string, payload []byte)) error {
	pubsub := s.client.PSubscribe(ctx, patterns...)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle(msg.Channel, []byte(msg.Payload))
		}
	}
}
