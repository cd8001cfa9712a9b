package commands

import (
	"github.com/google/uuid"

	bazaar_errors "bazaar-chat/pkg/errors"
)

// StartConversationCommand opens (or returns) the conversation between two
// participants, optionally tied to a marketplace item.
type StartConversationCommand struct {
	InitiatorID uuid.UUID
	PeerID      uuid.UUID
	ItemID      uuid.NullUUID
}

func (StartConversationCommand) CommandType() string {
	return "conversation.start"
}

func (c StartConversationCommand) Validate() error {
	if c.InitiatorID == uuid.Nil || c.PeerID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	if c.InitiatorID == c.PeerID {
		return bazaar_errors.ErrValidation
	}
	return nil
}

func (c StartConversationCommand) IdempotencyKey() string {
	return ""
}

// MarkReadCommand acknowledges everything the user has seen in a conversation.
type MarkReadCommand struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
}

func (MarkReadCommand) CommandType() string {
	return "conversation.mark_read"
}

func (c MarkReadCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.UserID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	return nil
}

func (c MarkReadCommand) IdempotencyKey() string {
	return ""
}
