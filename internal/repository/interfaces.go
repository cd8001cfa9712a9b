package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/domain/event"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/offer"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	GetByPairKey(ctx context.Context, pairKey string) (conversation.Conversation, error)
	GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error)
	SetItem(ctx context.Context, conversationID, itemID uuid.UUID) error

	GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error)
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)

	// append side effects
	SetLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error
	IncrementUnread(ctx context.Context, conversationID uuid.UUID, exceptUserID uuid.UUID) error
	ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error
	UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error)

	IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	ListBySeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error)
	GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error)
	GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (message.Message, error)
}

type OfferRepository interface {
	Create(ctx context.Context, o *offer.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (offer.Offer, error)
	// UpdateStatusIfPending transitions the offer only when it is still
	// PENDING, reporting whether a row changed. Terminal offers are left
	// byte-for-byte untouched.
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error)
	ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]offer.Offer, error)
}

// EventRepository writes outbox rows inside the same transaction as the
// mutation they describe. The DBTX-based OutboxRepository is the drain side.
type EventRepository interface {
	CreateOutboxEvent(ctx context.Context, ev *event.OutboxEvent) error
}

type OutboxRepository interface {
	Create(ctx context.Context, tx DBTX, ev *event.OutboxEvent) error
	GetPending(ctx context.Context, limit int) ([]event.OutboxEvent, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMsg string) error
	// MarkPending requeues a claimed row after a failed delivery attempt.
	MarkPending(ctx context.Context, id string, errorMsg string) error
	IncrementRetry(ctx context.Context, id string) error
}
