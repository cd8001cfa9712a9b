package outbox

import (
	"context"
	"time"

	"bazaar-chat/internal/repository"
	"bazaar-chat/pkg/logger"
)

type Runner struct {
	processor *Processor
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

func (r *Runner) Start(ctx context.Context) {
	go r.processor.Run(ctx)
}

func DefaultProcessor(repo repository.OutboxRepository, publisher Publisher, log *logger.Logger) *Processor {
	return NewProcessor(repo, publisher, log, 100, time.Second*2, 5)
}
