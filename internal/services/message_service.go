package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/domain/event"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
	bazaar_errors "bazaar-chat/pkg/errors"
)

// MessageCreatedPayload is the event body published for every append.
type MessageCreatedPayload struct {
	MessageID      uuid.UUID   `json:"message_id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	SenderID       uuid.UUID   `json:"sender_id"`
	RecipientIDs   []uuid.UUID `json:"recipient_ids"`
	SeqID          int64       `json:"seq_id"`
	Type           string      `json:"type"`
	Content        string      `json:"content,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// MessageService is the append-only message log. Appends are serialized per
// conversation through the shared guard; reads go straight to the repository
// and may proceed concurrently with writes.
type MessageService struct {
	db          *gorm.DB
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	eventRepo   repository.EventRepository
	bus         *commands.Bus
	eventBus    *events.Bus
	locks       *ConversationLocks
	now         func() time.Time
}

func NewMessageService(db *gorm.DB, messageRepo repository.MessageRepository, convRepo repository.ConversationRepository, eventRepo repository.EventRepository, bus *commands.Bus, eventBus *events.Bus, locks *ConversationLocks) *MessageService {
	if bus == nil {
		bus = commands.NewBus()
	}
	if locks == nil {
		locks = NewConversationLocks()
	}
	svc := &MessageService{
		db:          db,
		messageRepo: messageRepo,
		convRepo:    convRepo,
		eventRepo:   eventRepo,
		bus:         bus,
		eventBus:    eventBus,
		locks:       locks,
		now:         time.Now,
	}
	svc.RegisterHandlers()
	return svc
}

func (s *MessageService) RegisterHandlers() {
	s.bus.Register("message.send", commands.HandlerFunc(func(ctx context.Context, cmd commands.Command) (commands.Result, error) {
		typed, ok := cmd.(commands.SendMessageCommand)
		if !ok {
			return commands.Result{}, bazaar_errors.ErrValidation
		}
		return s.executeSendMessage(ctx, typed)
	}))
}

func (s *MessageService) Bus() *commands.Bus {
	return s.bus
}

// HandleSendMessage validates and appends one message, returning the stored
// record with its assigned ordering key.
func (s *MessageService) HandleSendMessage(ctx context.Context, cmd commands.SendMessageCommand) (commands.Result, error) {
	if err := cmd.Validate(); err != nil {
		return commands.Result{}, err
	}
	return s.bus.Execute(ctx, cmd)
}

// messageRepos bundles the repositories one append runs against, so a
// transaction can hand the append tx-bound instances without touching
// shared service state. Appends on different conversations run in
// parallel and must never see each other's transaction.
type messageRepos struct {
	messages repository.MessageRepository
	convs    repository.ConversationRepository
	events   repository.EventRepository
}

func (s *MessageService) repos() messageRepos {
	return messageRepos{messages: s.messageRepo, convs: s.convRepo, events: s.eventRepo}
}

func txMessageRepos(tx *gorm.DB) messageRepos {
	return messageRepos{
		messages: repository.NewMessageRepository(tx),
		convs:    repository.NewConversationRepository(tx),
		events:   repository.NewEventRepository(tx),
	}
}

func (s *MessageService) executeSendMessage(ctx context.Context, cmd commands.SendMessageCommand) (commands.Result, error) {
	g := s.locks.Guard(cmd.ConversationID)
	g.Lock()
	defer g.Unlock()

	if s.db == nil {
		return s.appendLocked(ctx, cmd, g, s.repos())
	}

	var result commands.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.appendLocked(ctx, cmd, g, txMessageRepos(tx))
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return commands.Result{}, err
	}
	return result, nil
}

// appendInTx appends a message inside a transaction the caller already
// holds, so the message row commits or rolls back together with the
// caller's own writes. Acquires the conversation guard itself; the caller
// must not hold it.
func (s *MessageService) appendInTx(ctx context.Context, tx *gorm.DB, cmd commands.SendMessageCommand) (commands.Result, error) {
	if err := cmd.Validate(); err != nil {
		return commands.Result{}, err
	}
	g := s.locks.Guard(cmd.ConversationID)
	g.Lock()
	defer g.Unlock()

	if tx == nil {
		return s.appendLocked(ctx, cmd, g, s.repos())
	}
	return s.appendLocked(ctx, cmd, g, txMessageRepos(tx))
}

func (s *MessageService) appendLocked(ctx context.Context, cmd commands.SendMessageCommand, g *appendGuard, r messageRepos) (commands.Result, error) {
	conv, err := r.convs.GetByID(ctx, cmd.ConversationID)
	if err != nil {
		return commands.Result{}, err
	}
	if !conv.HasParticipant(cmd.SenderID) {
		return commands.Result{}, bazaar_errors.ErrForbidden
	}
	if !conv.Active {
		return commands.Result{}, bazaar_errors.ErrInvalidState
	}

	if cmd.ClientMsgID != "" {
		existing, err := r.messages.GetByClientMessageID(ctx, cmd.ConversationID, cmd.ClientMsgID)
		if err == nil {
			return commands.Result{AggregateID: existing.ID.String(), Payload: existing}, nil
		}
		if err != bazaar_errors.ErrNotFound {
			return commands.Result{}, err
		}
	}

	seq, err := r.convs.IncrementSequence(ctx, cmd.ConversationID)
	if err != nil {
		return commands.Result{}, err
	}
	createdAt := g.Stamp(s.now())

	msgType := cmd.Type
	if msgType == "" {
		msgType = message.TypeText
	}
	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: cmd.ConversationID,
		SenderID:       cmd.SenderID,
		SeqID:          seq,
		Type:           msgType,
		Content:        nullString(cmd.Content),
		OfferID:        cmd.OfferID,
		CreatedAt:      createdAt,
	}
	if cmd.ClientMsgID != "" {
		msg.ClientMessageID = nullString(cmd.ClientMsgID)
	}

	if err := r.messages.Create(ctx, &msg); err != nil {
		return commands.Result{}, err
	}
	if err := r.convs.SetLastMessage(ctx, cmd.ConversationID, msg.ID, createdAt); err != nil {
		return commands.Result{}, err
	}
	if err := r.convs.IncrementUnread(ctx, cmd.ConversationID, cmd.SenderID); err != nil {
		return commands.Result{}, err
	}

	payload := MessageCreatedPayload{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientIDs:   recipientIDs(conv, cmd.SenderID),
		SeqID:          msg.SeqID,
		Type:           msg.Type,
		Content:        cmd.Content,
		CreatedAt:      msg.CreatedAt,
	}
	if err := s.recordAndPublish(ctx, r.events, events.EventTypeMessageCreated, events.AggregateTypeMessage, msg.ID, payload); err != nil {
		return commands.Result{}, err
	}

	return commands.Result{AggregateID: msg.ID.String(), Payload: msg}, nil
}

// GetConversationMessages lists messages oldest to newest, strictly after
// afterSeq. Restartable: callers page by passing the last seq they hold.
func (s *MessageService) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int, userID uuid.UUID) ([]message.Message, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, bazaar_errors.ErrForbidden
	}
	if limit <= 0 {
		limit = 50
	}
	return s.messageRepo.ListBySeq(ctx, conversationID, afterSeq, limit)
}

func (s *MessageService) GetByID(ctx context.Context, messageID uuid.UUID, userID uuid.UUID) (message.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return message.Message{}, err
	}
	if !conv.HasParticipant(userID) {
		return message.Message{}, bazaar_errors.ErrForbidden
	}
	return msg, nil
}

func (s *MessageService) recordAndPublish(ctx context.Context, eventRepo repository.EventRepository, eventType, aggregateType string, aggregateID uuid.UUID, payload interface{}) error {
	env, err := events.NewEnvelope(eventType, aggregateType, aggregateID.String(), payload)
	if err != nil {
		return err
	}
	if eventRepo != nil {
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		outboxEvent := &event.OutboxEvent{
			ID:            uuid.New(),
			AggregateType: aggregateType,
			AggregateID:   aggregateID,
			EventType:     eventType,
			Payload:       string(data),
			Status:        event.StatusPending,
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
		if err := eventRepo.CreateOutboxEvent(ctx, outboxEvent); err != nil {
			return fmt.Errorf("outbox write: %w", err)
		}
	}
	if s.eventBus != nil {
		s.eventBus.Publish(ctx, env)
	}
	return nil
}

func recipientIDs(conv conversation.Conversation, senderID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, p := range conv.Participants {
		if p.UserID != senderID {
			ids = append(ids, p.UserID)
		}
	}
	return ids
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
