package commands

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"bazaar-chat/internal/domain/offer"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// CreateOfferCommand opens a new negotiation step: either a price reduction
// against a listed price or an itemized barter proposal.
type CreateOfferCommand struct {
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Kind           string
	OriginalPrice  int64
	OfferedPrice   int64
	BarterItems    []offer.BarterItem
	TTL            time.Duration
}

func (CreateOfferCommand) CommandType() string {
	return "offer.create"
}

func (c CreateOfferCommand) Validate() error {
	if c.ConversationID == uuid.Nil || c.SenderID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	if c.TTL <= 0 {
		return bazaar_errors.ErrValidation
	}
	switch c.Kind {
	case offer.KindPriceReduction:
		if c.OriginalPrice <= 0 || c.OfferedPrice <= 0 || c.OfferedPrice >= c.OriginalPrice {
			return bazaar_errors.ErrValidation
		}
	case offer.KindBarter:
		if len(c.BarterItems) == 0 {
			return bazaar_errors.ErrValidation
		}
		for _, item := range c.BarterItems {
			if strings.TrimSpace(item.Name) == "" || item.EstimatedValue < 0 {
				return bazaar_errors.ErrValidation
			}
		}
	default:
		return bazaar_errors.ErrValidation
	}
	return nil
}

func (c CreateOfferCommand) IdempotencyKey() string {
	return ""
}

// OfferActionCommand applies an accept, reject or withdraw transition.
type OfferActionCommand struct {
	OfferID uuid.UUID
	ActorID uuid.UUID
	Action  string // "accept", "reject" or "withdraw"
}

func (c OfferActionCommand) CommandType() string {
	return "offer." + c.Action
}

func (c OfferActionCommand) Validate() error {
	if c.OfferID == uuid.Nil || c.ActorID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	switch c.Action {
	case "accept", "reject", "withdraw":
		return nil
	}
	return bazaar_errors.ErrValidation
}

func (c OfferActionCommand) IdempotencyKey() string {
	return ""
}

// CounterOfferCommand supersedes a pending offer with new terms from the
// other participant. ConversationID is optional; when set it must match the
// parent offer's conversation.
type CounterOfferCommand struct {
	ParentOfferID  uuid.UUID
	ConversationID uuid.UUID
	ActorID        uuid.UUID
	Kind           string
	OriginalPrice  int64
	OfferedPrice   int64
	BarterItems    []offer.BarterItem
	TTL            time.Duration
}

func (CounterOfferCommand) CommandType() string {
	return "offer.counter"
}

func (c CounterOfferCommand) Validate() error {
	if c.ParentOfferID == uuid.Nil || c.ActorID == uuid.Nil {
		return bazaar_errors.ErrValidation
	}
	if c.TTL <= 0 {
		return bazaar_errors.ErrValidation
	}
	switch c.Kind {
	case offer.KindPriceReduction:
		if c.OriginalPrice <= 0 || c.OfferedPrice <= 0 || c.OfferedPrice >= c.OriginalPrice {
			return bazaar_errors.ErrValidation
		}
	case offer.KindBarter:
		if len(c.BarterItems) == 0 {
			return bazaar_errors.ErrValidation
		}
		for _, item := range c.BarterItems {
			if strings.TrimSpace(item.Name) == "" || item.EstimatedValue < 0 {
				return bazaar_errors.ErrValidation
			}
		}
	default:
		return bazaar_errors.ErrValidation
	}
	return nil
}

func (c CounterOfferCommand) IdempotencyKey() string {
	return ""
}
