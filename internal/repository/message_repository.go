package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/domain/message"
	bazaar_errors "bazaar-chat/pkg/errors"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return bazaar_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, bazaar_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

// ListBySeq returns messages strictly after afterSeq, oldest to newest.
// Restartable: the caller resumes with the last seq it has seen.
func (r *PostgresMessageRepository) ListBySeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	var messages []message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND seq_id > ?", conversationID, afterSeq).
		Order("seq_id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND client_message_id = ?", conversationID, clientMessageID).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, bazaar_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("seq_id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, bazaar_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}
