package event

import (
	"time"

	"github.com/google/uuid"
)

// Outbox event statuses
const (
	StatusPending    = "PENDING"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// OutboxEvent represents the outbox_events table. Rows are written in the
// same transaction as the mutation they describe and drained asynchronously.
type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       string
	Status        string
	RetryCount    int
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   *time.Time
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}
