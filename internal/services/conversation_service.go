package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/user"
	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// ConversationSummary is one row of the conversation list view.
type ConversationSummary struct {
	ID               uuid.UUID
	OtherParticipant user.User
	ItemID           uuid.NullUUID
	LastMessage      *message.Message
	UnreadCount      int
	UpdatedAt        time.Time
}

// ConversationReadPayload is the event body for read acknowledgements.
// Cleared carries the unread count that was reset so consumers can update
// incrementally.
type ConversationReadPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Cleared        int       `json:"cleared"`
}

// ConversationCreatedPayload is the event body for new conversations.
type ConversationCreatedPayload struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	ItemID         *uuid.UUID  `json:"item_id,omitempty"`
}

// ConversationService owns conversation metadata: the participant pair,
// unread counts, the last-message pointer. Mutations on one conversation are
// serialized through the shared per-conversation guard.
type ConversationService struct {
	db          *gorm.DB
	repo        repository.ConversationRepository
	messageRepo repository.MessageRepository
	eventRepo   repository.EventRepository
	directory   user.Directory
	bus         *commands.Bus
	eventBus    *events.Bus
	locks       *ConversationLocks
	now         func() time.Time
}

func NewConversationService(db *gorm.DB, repo repository.ConversationRepository, messageRepo repository.MessageRepository, eventRepo repository.EventRepository, directory user.Directory, bus *commands.Bus, eventBus *events.Bus, locks *ConversationLocks) *ConversationService {
	if bus == nil {
		bus = commands.NewBus()
	}
	if locks == nil {
		locks = NewConversationLocks()
	}
	svc := &ConversationService{
		db:          db,
		repo:        repo,
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		directory:   directory,
		bus:         bus,
		eventBus:    eventBus,
		locks:       locks,
		now:         time.Now,
	}
	svc.RegisterHandlers()
	return svc
}

func (s *ConversationService) RegisterHandlers() {
	s.bus.Register("conversation.start", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.StartConversationCommand)
		if !ok {
			return commands.Result{}, bazaar_errors.ErrValidation
		}
		conv, err := s.executeCreateOrGet(ctx, typed)
		if err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: conv.ID.String(), Payload: conv}, nil
	}))
	s.bus.Register("conversation.mark_read", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.MarkReadCommand)
		if !ok {
			return commands.Result{}, bazaar_errors.ErrValidation
		}
		if err := s.executeMarkRead(ctx, typed); err != nil {
			return commands.Result{}, err
		}
		return commands.Result{AggregateID: typed.ConversationID.String()}, nil
	}))
}

// CreateOrGet opens the conversation between the command's participant pair,
// idempotently: both orderings of the same pair resolve to one conversation.
// An item reference is merged into an existing conversation when provided.
func (s *ConversationService) CreateOrGet(ctx context.Context, cmd commands.StartConversationCommand) (conversation.Conversation, error) {
	if err := cmd.Validate(); err != nil {
		return conversation.Conversation{}, err
	}
	res, err := s.bus.Execute(ctx, cmd)
	if err != nil {
		return conversation.Conversation{}, err
	}
	conv, _ := res.Payload.(conversation.Conversation)
	return conv, nil
}

func (s *ConversationService) executeCreateOrGet(ctx context.Context, cmd commands.StartConversationCommand) (conversation.Conversation, error) {
	pairKey := conversation.PairKey(cmd.InitiatorID, cmd.PeerID)

	existing, err := s.repo.GetByPairKey(ctx, pairKey)
	if err == nil {
		return s.mergeItem(ctx, existing, cmd.ItemID)
	}
	if err != bazaar_errors.ErrNotFound {
		return conversation.Conversation{}, err
	}

	now := s.now()
	conv := conversation.Conversation{
		ID:        uuid.New(),
		PairKey:   pairKey,
		ItemID:    cmd.ItemID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []conversation.Participant{
			{UserID: cmd.InitiatorID, JoinedAt: now},
			{UserID: cmd.PeerID, JoinedAt: now},
		},
	}
	if err := s.repo.Create(ctx, &conv); err != nil {
		if err == bazaar_errors.ErrAlreadyExists {
			// Lost the race against a concurrent first send for the same pair.
			existing, err := s.repo.GetByPairKey(ctx, pairKey)
			if err != nil {
				return conversation.Conversation{}, err
			}
			return s.mergeItem(ctx, existing, cmd.ItemID)
		}
		return conversation.Conversation{}, err
	}

	payload := ConversationCreatedPayload{
		ConversationID: conv.ID,
		ParticipantIDs: []uuid.UUID{cmd.InitiatorID, cmd.PeerID},
	}
	if conv.ItemID.Valid {
		itemID := conv.ItemID.UUID
		payload.ItemID = &itemID
	}
	s.publish(ctx, events.EventTypeConversationCreated, conv.ID, payload)

	return conv, nil
}

func (s *ConversationService) mergeItem(ctx context.Context, conv conversation.Conversation, itemID uuid.NullUUID) (conversation.Conversation, error) {
	if !itemID.Valid || conv.ItemID.Valid {
		return conv, nil
	}
	if err := s.repo.SetItem(ctx, conv.ID, itemID.UUID); err != nil {
		return conversation.Conversation{}, err
	}
	conv.ItemID = itemID
	return conv, nil
}

// ListForUser returns conversation summaries, most recently updated first.
func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]ConversationSummary, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	conversations, total, err := s.repo.GetUserConversations(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{
			ID:        conv.ID,
			ItemID:    conv.ItemID,
			UpdatedAt: conv.UpdatedAt,
		}
		if other, ok := conv.Other(userID); ok {
			summary.OtherParticipant = user.User{ID: other.UserID}
			if s.directory != nil {
				if u, err := s.directory.GetUser(ctx, other.UserID); err == nil {
					summary.OtherParticipant = u
				}
			}
		}
		for _, p := range conv.Participants {
			if p.UserID == userID {
				summary.UnreadCount = p.UnreadCount
			}
		}
		if conv.LastMessageID.Valid && s.messageRepo != nil {
			if msg, err := s.messageRepo.GetByID(ctx, conv.LastMessageID.UUID); err == nil {
				summary.LastMessage = &msg
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

func (s *ConversationService) GetByID(ctx context.Context, conversationID uuid.UUID) (conversation.Conversation, error) {
	return s.repo.GetByID(ctx, conversationID)
}

func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	return s.repo.IsParticipant(ctx, conversationID, userID)
}

// MarkRead resets the caller's unread count and advances their read marker.
func (s *ConversationService) MarkRead(ctx context.Context, cmd commands.MarkReadCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	_, err := s.bus.Execute(ctx, cmd)
	return err
}

func (s *ConversationService) executeMarkRead(ctx context.Context, cmd commands.MarkReadCommand) error {
	g := s.locks.Guard(cmd.ConversationID)
	g.Lock()
	defer g.Unlock()

	if s.db == nil {
		return s.markReadLocked(ctx, cmd, s.repo)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The tx-bound repository travels as a parameter; concurrent
		// mark-reads on other conversations keep using their own.
		return s.markReadLocked(ctx, cmd, repository.NewConversationRepository(tx))
	})
}

func (s *ConversationService) markReadLocked(ctx context.Context, cmd commands.MarkReadCommand, repo repository.ConversationRepository) error {
	conv, err := repo.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(cmd.UserID) {
		return bazaar_errors.ErrForbidden
	}

	var cleared int
	for _, p := range conv.Participants {
		if p.UserID == cmd.UserID {
			cleared = p.UnreadCount
		}
	}

	if err := repo.ResetUnread(ctx, cmd.ConversationID, cmd.UserID, s.now()); err != nil {
		return err
	}

	s.publish(ctx, events.EventTypeConversationRead, cmd.ConversationID, ConversationReadPayload{
		ConversationID: cmd.ConversationID,
		UserID:         cmd.UserID,
		Cleared:        cleared,
	})
	return nil
}

// UnreadTotal is the storage-backed sum, used to prime the aggregator.
func (s *ConversationService) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.UnreadTotal(ctx, userID)
}

func (s *ConversationService) publish(ctx context.Context, eventType string, aggregateID uuid.UUID, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, events.AggregateTypeConversation, aggregateID.String(), payload)
	if err != nil {
		return
	}
	s.eventBus.Publish(ctx, env)
}
