package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/offer"
	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
	bazaar_errors "bazaar-chat/pkg/errors"
	"bazaar-chat/pkg/logger"
)

const (
	systemOfferAccepted  = "Offer accepted!"
	systemOfferRejected  = "Offer rejected"
	systemOfferWithdrawn = "Offer withdrawn"
)

// OfferEventPayload is the event body for offer lifecycle changes. The
// accepted event is the trigger point for the downstream checkout flow.
type OfferEventPayload struct {
	OfferID        uuid.UUID  `json:"offer_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	ActorID        uuid.UUID  `json:"actor_id,omitempty"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Status         string     `json:"status"`
	Kind           string     `json:"kind"`
	OfferedPrice   int64      `json:"offered_price,omitempty"`
	ParentOfferID  *uuid.UUID `json:"parent_offer_id,omitempty"`
}

// OfferService runs the offer state machine. PENDING is the only state that
// admits a transition; every transition goes through the repository's guarded
// conditional update, so a lost race degrades to InvalidState instead of a
// double apply.
type OfferService struct {
	db        *gorm.DB
	offerRepo repository.OfferRepository
	convRepo  repository.ConversationRepository
	messages  *MessageService
	bus       *commands.Bus
	eventBus  *events.Bus
	log       *logger.Logger
	now       func() time.Time
}

func NewOfferService(db *gorm.DB, offerRepo repository.OfferRepository, convRepo repository.ConversationRepository, messages *MessageService, bus *commands.Bus, eventBus *events.Bus, log *logger.Logger) *OfferService {
	if bus == nil {
		bus = commands.NewBus()
	}
	svc := &OfferService{
		db:        db,
		offerRepo: offerRepo,
		convRepo:  convRepo,
		messages:  messages,
		bus:       bus,
		eventBus:  eventBus,
		log:       log,
		now:       time.Now,
	}
	svc.RegisterHandlers()
	return svc
}

func (s *OfferService) RegisterHandlers() {
	s.bus.Register("offer.create", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CreateOfferCommand)
		if !ok {
			return commands.Result{}, bazaar_errors.ErrValidation
		}
		o, err := s.createOffer(ctx, typed, uuid.NullUUID{})
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: o.ID.String(), Payload: o}, nil
	}))
	s.bus.Register("offer.counter", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.CounterOfferCommand)
		if !ok {
			return commands.Result{}, bazaar_errors.ErrValidation
		}
		o, err := s.executeCounter(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: o.ID.String(), Payload: o}, nil
	}))
	for _, action := range []string{"accept", "reject", "withdraw"} {
		action := action
		s.bus.Register("offer."+action, commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
			typed, ok := cmd.(commands.OfferActionCommand)
			if !ok {
				return commands.Result{}, bazaar_errors.ErrValidation
			}
			o, err := s.executeAction(ctx, typed)
			if err != nil {
				return commands.Result{}, err
			}
			return commands.Result{AggregateID: o.ID.String(), Payload: o}, nil
		}))
	}
}

// Create opens a new negotiation with a fresh PENDING offer.
func (s *OfferService) Create(ctx context.Context, cmd commands.CreateOfferCommand) (offer.Offer, error) {
	if err := cmd.Validate(); err != nil {
		return offer.Offer{}, err
	}
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return offer.Offer{}, err
	}
	o, _ := res.Payload.(offer.Offer)
	return o, nil
}

// Accept applies the accepting transition and records it as a system message.
func (s *OfferService) Accept(ctx context.Context, offerID, actorID uuid.UUID) (offer.Offer, error) {
	return s.action(ctx, offerID, actorID, "accept")
}

func (s *OfferService) Reject(ctx context.Context, offerID, actorID uuid.UUID) (offer.Offer, error) {
	return s.action(ctx, offerID, actorID, "reject")
}

func (s *OfferService) Withdraw(ctx context.Context, offerID, actorID uuid.UUID) (offer.Offer, error) {
	return s.action(ctx, offerID, actorID, "withdraw")
}

func (s *OfferService) action(ctx context.Context, offerID, actorID uuid.UUID, action string) (offer.Offer, error) {
	cmd := commands.OfferActionCommand{OfferID: offerID, ActorID: actorID, Action: action}
	if err := cmd.Validate(); err != nil {
		return offer.Offer{}, err
	}
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return offer.Offer{}, err
	}
	o, _ := res.Payload.(offer.Offer)
	return o, nil
}

// Counter supersedes a pending offer with new terms from the other party.
func (s *OfferService) Counter(ctx context.Context, cmd commands.CounterOfferCommand) (offer.Offer, error) {
	if err := cmd.Validate(); err != nil {
		return offer.Offer{}, err
	}
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return offer.Offer{}, err
	}
	o, _ := res.Payload.(offer.Offer)
	return o, nil
}

func (s *OfferService) GetByID(ctx context.Context, offerID uuid.UUID) (offer.Offer, error) {
	o, err := s.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return offer.Offer{}, err
	}
	// Expiry is detected lazily on access.
	return s.expireIfDue(ctx, o), nil
}

func (s *OfferService) createOffer(ctx context.Context, cmd commands.CreateOfferCommand, parentID uuid.NullUUID) (offer.Offer, error) {
	items, err := offer.EncodeItems(cmd.BarterItems)
	if err != nil {
		return offer.Offer{}, bazaar_errors.ErrValidation
	}

	now := s.now()
	offerID := uuid.New()

	// The append is the publication point: it runs the conversation and
	// participant guards and assigns the ordering key.
	sendCmd := commands.SendMessageCommand{
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.SenderID,
		Type:           message.TypeOffer,
		OfferID:        uuid.NullUUID{UUID: offerID, Valid: true},
	}
	build := func(msg message.Message) offer.Offer {
		return offer.Offer{
			ID:             offerID,
			ConversationID: cmd.ConversationID,
			MessageID:      msg.ID,
			SenderID:       cmd.SenderID,
			Kind:           cmd.Kind,
			OriginalPrice:  cmd.OriginalPrice,
			OfferedPrice:   cmd.OfferedPrice,
			BarterItems:    items,
			Status:         offer.StatusPending,
			ExpiresAt:      now.Add(cmd.TTL),
			ParentOfferID:  parentID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	var o offer.Offer
	if s.db == nil {
		msgRes, err := s.messages.HandleSendMessage(ctx, sendCmd)
		if err != nil {
			return offer.Offer{}, err
		}
		msg, _ := msgRes.Payload.(message.Message)
		o = build(msg)
		if err := s.offerRepo.Create(ctx, &o); err != nil {
			return offer.Offer{}, err
		}
	} else {
		// Message row and offer row commit together; a failure on either
		// side rolls back both, so no offer message exists without its
		// offer record.
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			msgRes, err := s.messages.appendInTx(ctx, tx, sendCmd)
			if err != nil {
				return err
			}
			msg, _ := msgRes.Payload.(message.Message)
			o = build(msg)
			return repository.NewOfferRepository(tx).Create(ctx, &o)
		})
		if err != nil {
			return offer.Offer{}, err
		}
	}

	s.publish(ctx, events.EventTypeOfferCreated, o, uuid.Nil)
	return o, nil
}

func (s *OfferService) executeAction(ctx context.Context, cmd commands.OfferActionCommand) (offer.Offer, error) {
	o, err := s.offerRepo.GetByID(ctx, cmd.OfferID)
	if err != nil {
		return offer.Offer{}, err
	}

	// Authorization is checked before state, so a self-accept fails
	// Forbidden regardless of offer status.
	switch cmd.Action {
	case "withdraw":
		if cmd.ActorID != o.SenderID {
			return offer.Offer{}, bazaar_errors.ErrForbidden
		}
	default:
		if cmd.ActorID == o.SenderID {
			return offer.Offer{}, bazaar_errors.ErrForbidden
		}
		ok, err := s.convRepo.IsParticipant(ctx, o.ConversationID, cmd.ActorID)
		if err != nil {
			return offer.Offer{}, err
		}
		if !ok {
			return offer.Offer{}, bazaar_errors.ErrForbidden
		}
	}

	o = s.expireIfDue(ctx, o)
	if o.Status == offer.StatusExpired {
		return offer.Offer{}, bazaar_errors.ErrExpired
	}
	if o.Status != offer.StatusPending {
		return offer.Offer{}, bazaar_errors.ErrInvalidState
	}

	var target, systemNote, eventType string
	switch cmd.Action {
	case "accept":
		target, systemNote, eventType = offer.StatusAccepted, systemOfferAccepted, events.EventTypeOfferAccepted
	case "reject":
		target, systemNote, eventType = offer.StatusRejected, systemOfferRejected, events.EventTypeOfferRejected
	case "withdraw":
		target, systemNote, eventType = offer.StatusWithdrawn, systemOfferWithdrawn, events.EventTypeOfferWithdrawn
	default:
		return offer.Offer{}, bazaar_errors.ErrValidation
	}

	changed, err := s.offerRepo.UpdateStatusIfPending(ctx, o.ID, target, s.now())
	if err != nil {
		return offer.Offer{}, err
	}
	if !changed {
		return offer.Offer{}, bazaar_errors.ErrInvalidState
	}
	o.Status = target

	if _, err := s.messages.HandleSendMessage(ctx, commands.SendMessageCommand{
		ConversationID: o.ConversationID,
		SenderID:       cmd.ActorID,
		Type:           message.TypeSystem,
		Content:        systemNote,
	}); err != nil && s.log != nil {
		s.log.Errorf("offer %s: system message append failed: %v", o.ID, err)
	}

	s.publish(ctx, eventType, o, cmd.ActorID)
	return o, nil
}

func (s *OfferService) executeCounter(ctx context.Context, cmd commands.CounterOfferCommand) (offer.Offer, error) {
	parent, err := s.offerRepo.GetByID(ctx, cmd.ParentOfferID)
	if err != nil {
		return offer.Offer{}, err
	}
	// A counter-offer must stay inside the parent's conversation.
	if cmd.ConversationID != uuid.Nil && cmd.ConversationID != parent.ConversationID {
		return offer.Offer{}, bazaar_errors.ErrValidation
	}
	if cmd.ActorID == parent.SenderID {
		return offer.Offer{}, bazaar_errors.ErrForbidden
	}
	ok, err := s.convRepo.IsParticipant(ctx, parent.ConversationID, cmd.ActorID)
	if err != nil {
		return offer.Offer{}, err
	}
	if !ok {
		return offer.Offer{}, bazaar_errors.ErrForbidden
	}

	parent = s.expireIfDue(ctx, parent)
	if parent.Status == offer.StatusExpired {
		return offer.Offer{}, bazaar_errors.ErrExpired
	}
	if parent.Status != offer.StatusPending {
		return offer.Offer{}, bazaar_errors.ErrInvalidState
	}

	// The replacement is created before the parent transitions, so a failed
	// create leaves the parent untouched and still PENDING.
	child, err := s.createOffer(ctx, commands.CreateOfferCommand{
		ConversationID: parent.ConversationID,
		SenderID:       cmd.ActorID,
		Kind:           cmd.Kind,
		OriginalPrice:  cmd.OriginalPrice,
		OfferedPrice:   cmd.OfferedPrice,
		BarterItems:    cmd.BarterItems,
		TTL:            cmd.TTL,
	}, uuid.NullUUID{UUID: parent.ID, Valid: true})
	if err != nil {
		return offer.Offer{}, err
	}

	changed, err := s.offerRepo.UpdateStatusIfPending(ctx, parent.ID, offer.StatusCountered, s.now())
	if err != nil || !changed {
		// Lost a race on the parent after the replacement went in; retract
		// the replacement so the negotiation keeps a single pending offer.
		if _, werr := s.offerRepo.UpdateStatusIfPending(ctx, child.ID, offer.StatusWithdrawn, s.now()); werr != nil && s.log != nil {
			s.log.Errorf("offer %s: retracting superseded counter failed: %v", child.ID, werr)
		}
		if err != nil {
			return offer.Offer{}, err
		}
		return offer.Offer{}, bazaar_errors.ErrInvalidState
	}
	parent.Status = offer.StatusCountered
	s.publish(ctx, events.EventTypeOfferCountered, parent, cmd.ActorID)

	return child, nil
}

// expireIfDue applies lazy expiry. Re-applying expiry to an already terminal
// offer is a no-op.
func (s *OfferService) expireIfDue(ctx context.Context, o offer.Offer) offer.Offer {
	if o.Status != offer.StatusPending || !o.IsExpiredAt(s.now()) {
		return o
	}
	changed, err := s.offerRepo.UpdateStatusIfPending(ctx, o.ID, offer.StatusExpired, s.now())
	if err != nil {
		if s.log != nil {
			s.log.Errorf("offer %s: lazy expiry failed: %v", o.ID, err)
		}
		return o
	}
	if changed {
		o.Status = offer.StatusExpired
		s.publish(ctx, events.EventTypeOfferExpired, o, uuid.Nil)
	}
	return o
}

// Sweep expires due pending offers in batches. Returns how many were expired.
func (s *OfferService) Sweep(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, err := s.offerRepo.ListPendingExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, o := range due {
		changed, err := s.offerRepo.UpdateStatusIfPending(ctx, o.ID, offer.StatusExpired, s.now())
		if err != nil {
			return expired, err
		}
		if changed {
			o.Status = offer.StatusExpired
			s.publish(ctx, events.EventTypeOfferExpired, o, uuid.Nil)
			expired++
		}
	}
	return expired, nil
}

// RunSweeper blocks, expiring due offers on a fixed interval until ctx ends.
func (s *OfferService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx, 100); err != nil {
				if s.log != nil {
					s.log.Errorf("offer sweep: %v", err)
				}
			} else if n > 0 && s.log != nil {
				s.log.Infof("offer sweep: expired %d offers", n)
			}
		}
	}
}

func (s *OfferService) publish(ctx context.Context, eventType string, o offer.Offer, actorID uuid.UUID) {
	if s.eventBus == nil {
		return
	}
	payload := OfferEventPayload{
		OfferID:        o.ID,
		ConversationID: o.ConversationID,
		ActorID:        actorID,
		SenderID:       o.SenderID,
		Status:         o.Status,
		Kind:           o.Kind,
		OfferedPrice:   o.OfferedPrice,
	}
	if o.ParentOfferID.Valid {
		parentID := o.ParentOfferID.UUID
		payload.ParentOfferID = &parentID
	}
	env, err := events.NewEnvelope(eventType, events.AggregateTypeOffer, o.ID.String(), payload)
	if err != nil {
		return
	}
	s.eventBus.Publish(ctx, env)
}
