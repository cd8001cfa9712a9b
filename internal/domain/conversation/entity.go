package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. Exactly two participants;
// the participant set is immutable after creation.
type Conversation struct {
	ID            uuid.UUID
	PairKey       string // canonical unordered participant pair, unique
	ItemID        uuid.NullUUID
	LastMessageID uuid.NullUUID
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Relationships
	Participants []Participant
}

// Participant represents the participants table
type Participant struct {
	ConversationID uuid.UUID
	UserID         uuid.UUID
	UnreadCount    int
	LastReadAt     *time.Time
	JoinedAt       time.Time
}

// ConversationSequence represents the conversation_sequences table
type ConversationSequence struct {
	ConversationID uuid.UUID
	LastSequence   int64
	UpdatedAt      time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Participant) TableName() string {
	return "participants"
}

func (ConversationSequence) TableName() string {
	return "conversation_sequences"
}

// PairKey builds the canonical key for an unordered participant pair. Both
// orderings of the same two users map to the same key, which backs the
// idempotent create-or-get semantics via a unique constraint.
func PairKey(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	if strings.Compare(ids[0], ids[1]) > 0 {
		ids[0], ids[1] = ids[1], ids[0]
	}
	return ids[0] + ":" + ids[1]
}

// Other returns the participant that is not userID, or false when userID is
// not part of the conversation.
func (c Conversation) Other(userID uuid.UUID) (Participant, bool) {
	var found bool
	var other Participant
	for _, p := range c.Participants {
		if p.UserID == userID {
			found = true
		} else {
			other = p
		}
	}
	if !found || other.UserID == uuid.Nil {
		return Participant{}, false
	}
	return other, true
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
