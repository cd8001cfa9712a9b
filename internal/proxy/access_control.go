package proxy

import (
	"context"

	"github.com/google/uuid"

	"bazaar-chat/internal/repository"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// AccessControl guards conversation operations. Both participants have equal
// rights; everyone else is rejected. A missing conversation surfaces as
// NotFound before any Forbidden check.
type AccessControl struct {
	conversationRepo repository.ConversationRepository
}

func NewAccessControl(conversationRepo repository.ConversationRepository) *AccessControl {
	return &AccessControl{conversationRepo: conversationRepo}
}

func (a *AccessControl) CanSendMessage(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.EnsureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) CanViewConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	return a.EnsureParticipant(ctx, conversationID, userID)
}

func (a *AccessControl) EnsureParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	if a.conversationRepo == nil {
		return bazaar_errors.ErrForbidden
	}
	conv, err := a.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(userID) {
		return bazaar_errors.ErrForbidden
	}
	return nil
}
