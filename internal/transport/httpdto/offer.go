package httpdto

import (
	"time"

	"bazaar-chat/internal/domain/offer"
)

type BarterItemDTO struct {
	Name           string `json:"name" binding:"required"`
	EstimatedValue int64  `json:"estimated_value"`
}

type CreateOfferRequest struct {
	ConversationID string          `json:"conversation_id" binding:"required"`
	Kind           string          `json:"kind" binding:"required"`
	OriginalPrice  int64           `json:"original_price"`
	OfferedPrice   int64           `json:"offered_price"`
	BarterItems    []BarterItemDTO `json:"barter_items"`
	TTLSeconds     int64           `json:"ttl_seconds"`
}

type CounterOfferRequest struct {
	ConversationID string          `json:"conversation_id"`
	Kind           string          `json:"kind" binding:"required"`
	OriginalPrice  int64           `json:"original_price"`
	OfferedPrice   int64           `json:"offered_price"`
	BarterItems    []BarterItemDTO `json:"barter_items"`
	TTLSeconds     int64           `json:"ttl_seconds"`
}

type OfferView struct {
	ID              string          `json:"id"`
	ConversationID  string          `json:"conversation_id"`
	MessageID       string          `json:"message_id"`
	SenderID        string          `json:"sender_id"`
	Kind            string          `json:"kind"`
	OriginalPrice   int64           `json:"original_price,omitempty"`
	OfferedPrice    int64           `json:"offered_price,omitempty"`
	DiscountPercent int             `json:"discount_percent,omitempty"`
	BarterItems     []BarterItemDTO `json:"barter_items,omitempty"`
	Status          string          `json:"status"`
	ExpiresAt       time.Time       `json:"expires_at"`
	ParentOfferID   string          `json:"parent_offer_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func FromOffer(o offer.Offer) OfferView {
	view := OfferView{
		ID:             o.ID.String(),
		ConversationID: o.ConversationID.String(),
		MessageID:      o.MessageID.String(),
		SenderID:       o.SenderID.String(),
		Kind:           o.Kind,
		Status:         o.Status,
		ExpiresAt:      o.ExpiresAt,
		CreatedAt:      o.CreatedAt,
	}
	if o.Kind == offer.KindPriceReduction {
		view.OriginalPrice = o.OriginalPrice
		view.OfferedPrice = o.OfferedPrice
		view.DiscountPercent = o.DiscountPercent()
	}
	if items, err := o.Items(); err == nil {
		for _, item := range items {
			view.BarterItems = append(view.BarterItems, BarterItemDTO{
				Name:           item.Name,
				EstimatedValue: item.EstimatedValue,
			})
		}
	}
	if o.ParentOfferID.Valid {
		view.ParentOfferID = o.ParentOfferID.UUID.String()
	}
	return view
}

func ToBarterItems(items []BarterItemDTO) []offer.BarterItem {
	out := make([]offer.BarterItem, 0, len(items))
	for _, item := range items {
		out = append(out, offer.BarterItem{
			Name:           item.Name,
			EstimatedValue: item.EstimatedValue,
		})
	}
	return out
}
