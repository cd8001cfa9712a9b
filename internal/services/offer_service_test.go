package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/offer"
	"bazaar-chat/internal/events"
	bazaar_errors "bazaar-chat/pkg/errors"
)

func priceOffer(conversationID, senderID uuid.UUID) commands.CreateOfferCommand {
	return commands.CreateOfferCommand{
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           offer.KindPriceReduction,
		OriginalPrice:  10000,
		OfferedPrice:   8000,
		TTL:            24 * time.Hour,
	}
}

func TestCreateOfferAppendsOfferMessage(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	created := env.collectEvents(events.EventTypeOfferCreated)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if o.Status != offer.StatusPending {
		t.Errorf("status = %s, want PENDING", o.Status)
	}
	if o.ParentOfferID.Valid {
		t.Errorf("fresh offer has a parent")
	}

	msg, err := env.msgRepo.GetByID(context.Background(), o.MessageID)
	if err != nil {
		t.Fatalf("offer message missing: %v", err)
	}
	if msg.Type != message.TypeOffer {
		t.Errorf("message type = %s, want OFFER", msg.Type)
	}
	if !msg.OfferID.Valid || msg.OfferID.UUID != o.ID {
		t.Errorf("message does not point back at the offer")
	}

	if len(*created) != 1 {
		t.Errorf("offer.created events = %d, want 1", len(*created))
	}
}

func TestCreateOfferValidation(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	cases := []struct {
		name string
		mut  func(*commands.CreateOfferCommand)
	}{
		{"offered at or above original", func(c *commands.CreateOfferCommand) { c.OfferedPrice = c.OriginalPrice }},
		{"zero offered price", func(c *commands.CreateOfferCommand) { c.OfferedPrice = 0 }},
		{"non-positive ttl", func(c *commands.CreateOfferCommand) { c.TTL = 0 }},
		{"unknown kind", func(c *commands.CreateOfferCommand) { c.Kind = "TRADE" }},
		{"barter without items", func(c *commands.CreateOfferCommand) {
			c.Kind = offer.KindBarter
			c.BarterItems = nil
		}},
		{"barter blank item name", func(c *commands.CreateOfferCommand) {
			c.Kind = offer.KindBarter
			c.BarterItems = []offer.BarterItem{{Name: "  ", EstimatedValue: 100}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := priceOffer(conv.ID, buyer)
			tc.mut(&cmd)
			if _, err := env.offers.Create(context.Background(), cmd); err != bazaar_errors.ErrValidation {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateOfferNonParticipantForbidden(t *testing.T) {
	env := newTestEnv()
	conv := env.startConversation(t, uuid.New(), uuid.New())

	_, err := env.offers.Create(context.Background(), priceOffer(conv.ID, uuid.New()))
	if err != bazaar_errors.ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestAcceptOfferByPeer(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	accepted := env.collectEvents(events.EventTypeOfferAccepted)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := env.offers.Accept(context.Background(), o.ID, seller)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != offer.StatusAccepted {
		t.Errorf("status = %s, want ACCEPTED", got.Status)
	}

	stored, _ := env.offerRepo.GetByID(context.Background(), o.ID)
	if stored.Status != offer.StatusAccepted {
		t.Errorf("persisted status = %s, want ACCEPTED", stored.Status)
	}

	last, err := env.msgRepo.GetLatestMessage(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("latest message: %v", err)
	}
	if last.Type != message.TypeSystem || last.Content.String != systemOfferAccepted {
		t.Errorf("system note missing, got type=%s content=%q", last.Type, last.Content.String)
	}

	if len(*accepted) != 1 {
		t.Errorf("offer.accepted events = %d, want 1", len(*accepted))
	}
}

func TestAcceptOwnOfferForbidden(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Authorization fires before any state check, even on an expired offer.
	env.offers.now = func() time.Time { return o.ExpiresAt.Add(time.Minute) }
	if _, err := env.offers.Accept(context.Background(), o.ID, buyer); err != bazaar_errors.ErrForbidden {
		t.Fatalf("self accept err = %v, want ErrForbidden", err)
	}
}

func TestWithdrawOnlyBySender(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.offers.Withdraw(context.Background(), o.ID, seller); err != bazaar_errors.ErrForbidden {
		t.Fatalf("peer withdraw err = %v, want ErrForbidden", err)
	}

	got, err := env.offers.Withdraw(context.Background(), o.ID, buyer)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got.Status != offer.StatusWithdrawn {
		t.Errorf("status = %s, want WITHDRAWN", got.Status)
	}
}

func TestRejectOffer(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := env.offers.Reject(context.Background(), o.ID, seller)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != offer.StatusRejected {
		t.Errorf("status = %s, want REJECTED", got.Status)
	}

	if _, err := env.offers.Accept(context.Background(), o.ID, seller); err != bazaar_errors.ErrInvalidState {
		t.Errorf("accept after reject err = %v, want ErrInvalidState", err)
	}
}

func TestAcceptUnknownOfferNotFound(t *testing.T) {
	env := newTestEnv()
	if _, err := env.offers.Accept(context.Background(), uuid.New(), uuid.New()); err != bazaar_errors.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExpiredOfferRejectsTransitions(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	expiredEvents := env.collectEvents(events.EventTypeOfferExpired)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.offers.now = func() time.Time { return o.ExpiresAt.Add(time.Minute) }

	if _, err := env.offers.Accept(context.Background(), o.ID, seller); err != bazaar_errors.ErrExpired {
		t.Fatalf("accept after ttl err = %v, want ErrExpired", err)
	}

	stored, _ := env.offerRepo.GetByID(context.Background(), o.ID)
	if stored.Status != offer.StatusExpired {
		t.Errorf("persisted status = %s, want EXPIRED", stored.Status)
	}
	if len(*expiredEvents) != 1 {
		t.Errorf("offer.expired events = %d, want 1", len(*expiredEvents))
	}
}

func TestGetByIDExpiresLazily(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	o, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	env.offers.now = func() time.Time { return o.ExpiresAt.Add(time.Second) }

	got, err := env.offers.GetByID(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != offer.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", got.Status)
	}
}

func TestCounterSupersedesParent(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	countered := env.collectEvents(events.EventTypeOfferCountered)

	parent, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	child, err := env.offers.Counter(context.Background(), commands.CounterOfferCommand{
		ParentOfferID: parent.ID,
		ActorID:       seller,
		Kind:          offer.KindPriceReduction,
		OriginalPrice: 10000,
		OfferedPrice:  9000,
		TTL:           24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}

	if child.Status != offer.StatusPending {
		t.Errorf("child status = %s, want PENDING", child.Status)
	}
	if !child.ParentOfferID.Valid || child.ParentOfferID.UUID != parent.ID {
		t.Errorf("child not linked to parent")
	}
	if child.SenderID != seller {
		t.Errorf("child sender = %s, want the countering actor", child.SenderID)
	}

	storedParent, _ := env.offerRepo.GetByID(context.Background(), parent.ID)
	if storedParent.Status != offer.StatusCountered {
		t.Errorf("parent status = %s, want COUNTERED", storedParent.Status)
	}
	if len(*countered) != 1 {
		t.Errorf("offer.countered events = %d, want 1", len(*countered))
	}

	// The superseded offer admits no further transitions.
	if _, err := env.offers.Accept(context.Background(), parent.ID, seller); err != bazaar_errors.ErrInvalidState {
		t.Errorf("accept countered parent err = %v, want ErrInvalidState", err)
	}
}

func TestCounterGuards(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	parent, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	base := commands.CounterOfferCommand{
		ParentOfferID: parent.ID,
		ActorID:       seller,
		Kind:          offer.KindPriceReduction,
		OriginalPrice: 10000,
		OfferedPrice:  9000,
		TTL:           time.Hour,
	}

	mismatch := base
	mismatch.ConversationID = uuid.New()
	if _, err := env.offers.Counter(context.Background(), mismatch); err != bazaar_errors.ErrValidation {
		t.Errorf("conversation mismatch err = %v, want ErrValidation", err)
	}

	selfCounter := base
	selfCounter.ActorID = buyer
	if _, err := env.offers.Counter(context.Background(), selfCounter); err != bazaar_errors.ErrForbidden {
		t.Errorf("self counter err = %v, want ErrForbidden", err)
	}

	outsider := base
	outsider.ActorID = uuid.New()
	if _, err := env.offers.Counter(context.Background(), outsider); err != bazaar_errors.ErrForbidden {
		t.Errorf("outsider counter err = %v, want ErrForbidden", err)
	}

	storedParent, _ := env.offerRepo.GetByID(context.Background(), parent.ID)
	if storedParent.Status != offer.StatusPending {
		t.Errorf("failed counters changed parent status to %s", storedParent.Status)
	}
}

func TestCounterLeavesParentPendingWhenAppendFails(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	parent, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	counter := commands.CounterOfferCommand{
		ParentOfferID: parent.ID,
		ActorID:       seller,
		Kind:          offer.KindPriceReduction,
		OriginalPrice: 10000,
		OfferedPrice:  9000,
		TTL:           24 * time.Hour,
	}

	// Storage refuses the replacement's message. The parent must survive
	// untouched so the negotiation still holds its one pending offer.
	boom := errors.New("insert failed")
	env.msgRepo.failNextCreate(boom)
	if _, err := env.offers.Counter(context.Background(), counter); !errors.Is(err, boom) {
		t.Fatalf("counter err = %v, want the storage failure", err)
	}

	storedParent, err := env.offerRepo.GetByID(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("parent lookup: %v", err)
	}
	if storedParent.Status != offer.StatusPending {
		t.Errorf("parent status = %s, want PENDING", storedParent.Status)
	}

	// The failure was transient; a retry completes the counter normally.
	child, err := env.offers.Counter(context.Background(), counter)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if child.Status != offer.StatusPending {
		t.Errorf("child status = %s, want PENDING", child.Status)
	}
	storedParent, _ = env.offerRepo.GetByID(context.Background(), parent.ID)
	if storedParent.Status != offer.StatusCountered {
		t.Errorf("parent status after retry = %s, want COUNTERED", storedParent.Status)
	}
}

func TestBarterOfferRoundTripsItems(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	items := []offer.BarterItem{
		{Name: "vintage camera", EstimatedValue: 4500},
		{Name: "tripod", EstimatedValue: 1500},
	}
	o, err := env.offers.Create(context.Background(), commands.CreateOfferCommand{
		ConversationID: conv.ID,
		SenderID:       buyer,
		Kind:           offer.KindBarter,
		BarterItems:    items,
		TTL:            time.Hour,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	decoded, err := o.Items()
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Name != "vintage camera" || decoded[1].EstimatedValue != 1500 {
		t.Errorf("items mismatch: %+v", decoded)
	}
}

func TestSweepExpiresDueOffers(t *testing.T) {
	env := newTestEnv()
	seller, buyer := uuid.New(), uuid.New()
	conv := env.startConversation(t, seller, buyer)

	first, err := env.offers.Create(context.Background(), priceOffer(conv.ID, buyer))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := env.offers.Counter(context.Background(), commands.CounterOfferCommand{
		ParentOfferID: first.ID,
		ActorID:       seller,
		Kind:          offer.KindPriceReduction,
		OriginalPrice: 10000,
		OfferedPrice:  9000,
		TTL:           time.Hour,
	})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}

	env.offers.now = func() time.Time { return second.ExpiresAt.Add(time.Minute) }

	n, err := env.offers.Sweep(context.Background(), 100)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	// Only the pending child is due; the countered parent is already terminal.
	if n != 1 {
		t.Errorf("sweep expired %d offers, want 1", n)
	}
	stored, _ := env.offerRepo.GetByID(context.Background(), second.ID)
	if stored.Status != offer.StatusExpired {
		t.Errorf("child status = %s, want EXPIRED", stored.Status)
	}

	// A second pass finds nothing left to expire.
	n, err = env.offers.Sweep(context.Background(), 100)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep expired %d offers, want 0", n)
	}
}
