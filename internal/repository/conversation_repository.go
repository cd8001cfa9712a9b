package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/domain/conversation"
	bazaar_errors "bazaar-chat/pkg/errors"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(c).Error; err != nil {
			return err
		}
		for i := range c.Participants {
			c.Participants[i].ConversationID = c.ID
			if err := tx.Create(&c.Participants[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return bazaar_errors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, bazaar_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetByPairKey(ctx context.Context, pairKey string) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("pair_key = ?", pairKey).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Conversation{}, bazaar_errors.ErrNotFound
		}
		return conversation.Conversation{}, err
	}
	return c, nil
}

func (r *PostgresConversationRepository) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	var conversations []conversation.Conversation
	var total int64

	subQuery := r.db.Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	q := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id IN (?) AND active", subQuery)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	err := q.Preload("Participants").
		Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, err
	}
	return conversations, total, nil
}

func (r *PostgresConversationRepository) SetItem(ctx context.Context, conversationID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Update("item_id", itemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bazaar_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	var p conversation.Participant
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return conversation.Participant{}, bazaar_errors.ErrNotFound
		}
		return conversation.Participant{}, err
	}
	return p, nil
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) SetLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"updated_at":      at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bazaar_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) IncrementUnread(ctx context.Context, conversationID uuid.UUID, exceptUserID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id <> ?", conversationID, exceptUserID).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (r *PostgresConversationRepository) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"last_read_at": readAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return bazaar_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&conversation.Participant{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(unread_count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PostgresConversationRepository) IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	var seq conversation.ConversationSequence

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("conversation_id = ?", conversationID).First(&seq).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				seq = conversation.ConversationSequence{
					ConversationID: conversationID,
					LastSequence:   1,
					UpdatedAt:      time.Now(),
				}
				return tx.Create(&seq).Error
			}
			return err
		}

		seq.LastSequence++
		seq.UpdatedAt = time.Now()
		return tx.Save(&seq).Error
	})

	if err != nil {
		return 0, err
	}
	return seq.LastSequence, nil
}
