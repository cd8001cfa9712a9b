package outbox

import (
	"context"
	"encoding/json"
	"time"

	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
	"bazaar-chat/pkg/logger"
)

// Publisher is the transport the drained events go out on.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor drains pending outbox rows and republishes them to Redis so
// every node's websocket bridge sees them. Rows hold the fully marshaled
// envelope, written in the same transaction as the mutation they describe.
type Processor struct {
	repo       repository.OutboxRepository
	publisher  Publisher
	log        *logger.Logger
	batchSize  int
	interval   time.Duration
	maxRetries int
}

func NewProcessor(repo repository.OutboxRepository, publisher Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		log:        log,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

func (p *Processor) ProcessBatch(ctx context.Context) {
	batch, err := p.repo.GetPending(ctx, p.batchSize)
	if err != nil {
		if p.log != nil {
			p.log.Errorf("outbox: fetch pending: %v", err)
		}
		return
	}

	for _, e := range batch {
		id := e.ID.String()
		if e.RetryCount >= p.maxRetries {
			_ = p.repo.MarkFailed(ctx, id, "max retries exceeded")
			continue
		}

		var env events.Envelope
		if err := json.Unmarshal([]byte(e.Payload), &env); err != nil {
			_ = p.repo.MarkFailed(ctx, id, err.Error())
			continue
		}

		_ = p.repo.MarkProcessing(ctx, id)

		if err := p.deliver(ctx, env, []byte(e.Payload)); err != nil {
			_ = p.repo.IncrementRetry(ctx, id)
			_ = p.repo.MarkPending(ctx, id, err.Error())
			continue
		}

		_ = p.repo.MarkCompleted(ctx, id)
	}
}

func (p *Processor) deliver(ctx context.Context, env events.Envelope, payload []byte) error {
	channels := events.ResolveChannels(env)
	if len(channels) == 0 {
		channels = []string{events.ChannelSystemOutbox}
	}
	for _, channel := range channels {
		if err := p.publisher.Publish(ctx, channel, payload); err != nil {
			return err
		}
	}
	return nil
}
