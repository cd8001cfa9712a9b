package redis

import (
	"context"
	"encoding/json"

	goredis "github.com/redis/go-redis/v9"

	"bazaar-chat/internal/events"
)

type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// PublishEnvelope fans an event envelope out to its Redis channels so other
// nodes can bridge it to their websocket clients.
func (p *Publisher) PublishEnvelope(ctx context.Context, env events.Envelope, channels []string) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	for _, channel := range channels {
		if err := p.Publish(ctx, channel, data); err != nil {
			return err
		}
	}
	return nil
}
