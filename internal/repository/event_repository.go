package repository

import (
	"context"

	"gorm.io/gorm"

	"bazaar-chat/internal/domain/event"
)

type PostgresEventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

func (r *PostgresEventRepository) CreateOutboxEvent(ctx context.Context, ev *event.OutboxEvent) error {
	if ev.Status == "" {
		ev.Status = event.StatusPending
	}
	return r.db.WithContext(ctx).Create(ev).Error
}
