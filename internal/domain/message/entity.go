package message

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message types. The type tag makes handling of chat content, offers and
// system notices exhaustive instead of a loose metadata bag.
const (
	TypeText   = "TEXT"
	TypeOffer  = "OFFER"
	TypeSystem = "SYSTEM"
)

// Message represents the messages table. Messages are append-only: everything
// except read state is immutable once stored.
type Message struct {
	ID              uuid.UUID
	ConversationID  uuid.UUID
	SenderID        uuid.UUID
	SeqID           int64
	Type            string
	Content         sql.NullString
	OfferID         uuid.NullUUID
	ClientMessageID sql.NullString
	CreatedAt       time.Time
	EditedAt        sql.NullTime
}

func (Message) TableName() string {
	return "messages"
}

// ValidType reports whether t is one of the known message types.
func ValidType(t string) bool {
	switch t {
	case TypeText, TypeOffer, TypeSystem:
		return true
	}
	return false
}

// ValidateContent checks user-authored text content.
func ValidateContent(msgType, content string) bool {
	if msgType == TypeText && strings.TrimSpace(content) == "" {
		return false
	}
	return true
}
