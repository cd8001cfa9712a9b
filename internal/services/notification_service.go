package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"bazaar-chat/internal/events"
	"bazaar-chat/internal/repository"
	"bazaar-chat/pkg/logger"
)

// NotificationService keeps a per-user total of unread messages so badge
// reads are O(1) instead of summing counters across conversations. A user's
// total is primed lazily from the store on their first query and maintained
// from the event stream after that: message.created increments each
// recipient, conversation.read subtracts however many that read cleared.
// Events for a user who has not been primed yet are dropped — the store
// snapshot taken at prime time already reflects them.
type NotificationService struct {
	convRepo repository.ConversationRepository
	log      *logger.Logger

	mu     sync.Mutex
	totals map[uuid.UUID]int64
	primed map[uuid.UUID]bool
}

func NewNotificationService(convRepo repository.ConversationRepository, eventBus *events.Bus, log *logger.Logger) *NotificationService {
	svc := &NotificationService{
		convRepo: convRepo,
		log:      log,
		totals:   make(map[uuid.UUID]int64),
		primed:   make(map[uuid.UUID]bool),
	}
	if eventBus != nil {
		eventBus.Subscribe(events.EventTypeMessageCreated, svc.onMessageCreated)
		eventBus.Subscribe(events.EventTypeConversationRead, svc.onConversationRead)
	}
	return svc
}

// UnreadTotal returns the user's aggregate unread count across all
// conversations. The first call for a user hits the store, later calls are
// served from the counter.
func (s *NotificationService) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	if s.primed[userID] {
		total := s.totals[userID]
		s.mu.Unlock()
		return total, nil
	}
	s.mu.Unlock()

	total, err := s.convRepo.UnreadTotal(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primed[userID] {
		s.totals[userID] = total
		s.primed[userID] = true
	}
	return s.totals[userID], nil
}

func (s *NotificationService) onMessageCreated(ctx context.Context, env events.Envelope) {
	var payload MessageCreatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		if s.log != nil {
			s.log.Errorf("notification: bad message.created payload: %v", err)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, recipient := range payload.RecipientIDs {
		if s.primed[recipient] {
			s.totals[recipient]++
		}
	}
}

func (s *NotificationService) onConversationRead(ctx context.Context, env events.Envelope) {
	var payload ConversationReadPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		if s.log != nil {
			s.log.Errorf("notification: bad conversation.read payload: %v", err)
		}
		return
	}
	if payload.Cleared == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.primed[payload.UserID] {
		return
	}
	s.totals[payload.UserID] -= int64(payload.Cleared)
	if s.totals[payload.UserID] < 0 {
		s.totals[payload.UserID] = 0
	}
}
