package websocket

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
)

// ChannelAuthorizer decides which pub/sub channels a user may attach to.
type ChannelAuthorizer struct {
	convRepo repository.ConversationRepository
}

func NewChannelAuthorizer(convRepo repository.ConversationRepository) *ChannelAuthorizer {
	return &ChannelAuthorizer{convRepo: convRepo}
}

// CanSubscribe allows a user's own channel unconditionally and conversation
// channels only for participants. Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	if channel == events.ChannelPrefixUser+userID.String() {
		return true, nil
	}

	if strings.HasPrefix(channel, events.ChannelPrefixConversation) {
		convID, err := uuid.Parse(strings.TrimPrefix(channel, events.ChannelPrefixConversation))
		if err != nil {
			return false, nil
		}
		return a.convRepo.IsParticipant(ctx, convID, userID)
	}

	return false, nil
}
