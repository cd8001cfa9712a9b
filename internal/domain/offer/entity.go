package offer

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// Offer kinds
const (
	KindPriceReduction = "PRICE_REDUCTION"
	KindBarter         = "BARTER"
)

// Offer statuses. PENDING is the only non-terminal status.
const (
	StatusPending   = "PENDING"
	StatusAccepted  = "ACCEPTED"
	StatusRejected  = "REJECTED"
	StatusCountered = "COUNTERED"
	StatusExpired   = "EXPIRED"
	StatusWithdrawn = "WITHDRAWN"
)

// Offer represents the offers table. An offer is the payload of a
// Message(type=OFFER); ParentOfferID links counter-offers into a chain
// within one conversation.
type Offer struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	MessageID      uuid.UUID
	SenderID       uuid.UUID
	Kind           string
	OriginalPrice  int64 // minor currency units
	OfferedPrice   int64
	BarterItems    string // JSON-encoded []BarterItem
	Status         string
	ExpiresAt      time.Time
	ParentOfferID  uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BarterItem is one proposed trade item. Estimated values are advisory only;
// barter offers carry no monetary total.
type BarterItem struct {
	Name           string `json:"name"`
	EstimatedValue int64  `json:"estimated_value"`
}

func (Offer) TableName() string {
	return "offers"
}

// IsTerminal reports whether no further transition is permitted.
func (o Offer) IsTerminal() bool {
	return o.Status != StatusPending
}

// IsExpiredAt reports whether the offer TTL has elapsed at the given instant.
func (o Offer) IsExpiredAt(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// DiscountPercent returns round((original-offered)/original*100) for price
// reduction offers, 0 otherwise.
func (o Offer) DiscountPercent() int {
	if o.Kind != KindPriceReduction || o.OriginalPrice <= 0 {
		return 0
	}
	return int(math.Round(float64(o.OriginalPrice-o.OfferedPrice) / float64(o.OriginalPrice) * 100))
}

// Items decodes the barter item list.
func (o Offer) Items() ([]BarterItem, error) {
	if o.BarterItems == "" {
		return nil, nil
	}
	var items []BarterItem
	if err := json.Unmarshal([]byte(o.BarterItems), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// EncodeItems serializes a barter item list for storage.
func EncodeItems(items []BarterItem) (string, error) {
	if len(items) == 0 {
		return "", nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
