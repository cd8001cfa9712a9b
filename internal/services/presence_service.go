package services

import (
	"context"

	"github.com/google/uuid"

	"bazaar-chat/internal/events"
	"bazaar-chat/internal/presence"
	"bazaar-chat/internal/proxy"
	"bazaar-chat/internal/repository"
)

// TypingPayload is broadcast to the other participant when typing state
// changes. Typing state is ephemeral and never persisted.
type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Typing         bool      `json:"typing"`
}

// PresenceService fronts the typing tracker with participant checks and
// event fanout.
type PresenceService struct {
	tracker  presence.Tracker
	access   *proxy.AccessControl
	eventBus *events.Bus
}

func NewPresenceService(tracker presence.Tracker, convRepo repository.ConversationRepository, eventBus *events.Bus) *PresenceService {
	return &PresenceService{
		tracker:  tracker,
		access:   proxy.NewAccessControl(convRepo),
		eventBus: eventBus,
	}
}

func (s *PresenceService) SetTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.ensureParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.tracker.SetTyping(ctx, conversationID, userID); err != nil {
		return err
	}
	s.publishTyping(ctx, events.EventTypeTypingStarted, conversationID, userID, true)
	return nil
}

func (s *PresenceService) ClearTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	if err := s.ensureParticipant(ctx, conversationID, userID); err != nil {
		return err
	}
	if err := s.tracker.ClearTyping(ctx, conversationID, userID); err != nil {
		return err
	}
	s.publishTyping(ctx, events.EventTypeTypingStopped, conversationID, userID, false)
	return nil
}

// TypingUsers lists who is currently typing, excluding the viewer.
func (s *PresenceService) TypingUsers(ctx context.Context, conversationID, viewerID uuid.UUID) ([]uuid.UUID, error) {
	if err := s.ensureParticipant(ctx, conversationID, viewerID); err != nil {
		return nil, err
	}
	all, err := s.tracker.TypingUsers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	users := make([]uuid.UUID, 0, len(all))
	for _, id := range all {
		if id != viewerID {
			users = append(users, id)
		}
	}
	return users, nil
}

func (s *PresenceService) ensureParticipant(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.access.EnsureParticipant(ctx, conversationID, userID)
}

func (s *PresenceService) publishTyping(ctx context.Context, eventType string, conversationID, userID uuid.UUID, typing bool) {
	if s.eventBus == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, events.AggregateTypeConversation, conversationID.String(), TypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		Typing:         typing,
	})
	if err != nil {
		return
	}
	s.eventBus.Publish(ctx, env)
}
