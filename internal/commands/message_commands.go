package commands

import (
	"strings"

	"github.com/google/uuid"

	"bazaar-chat/internal/domain/message"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// SendMessageCommand appends one message to a conversation. OfferID is set
// internally when the message carries an offer payload.
type SendMessageCommand struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	Type           string
	ClientMsgID    string
	OfferID        uuid.NullUUID
}

func (SendMessageCommand) CommandType() string {
	return "message.send"
}

func (c SendMessageCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.SenderID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	msgType := c.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	if !message.ValidType(msgType) {
		return bazaar_errors.ErrValidation
	}
	if msgType == message.TypeText && strings.TrimSpace(c.Content) == "" {
		return bazaar_errors.ErrValidation
	}
	// An offer message exists only as the carrier of an offer record.
	if msgType == message.TypeOffer && !c.OfferID.Valid {
		return bazaar_errors.ErrValidation
	}
	return nil
}

func (c SendMessageCommand) IdempotencyKey() string {
	return c.ClientMsgID
}
