package presence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultQuietWindow is how long a typing signal stays visible without a
// follow-up heartbeat.
const DefaultQuietWindow = 3 * time.Second

// Tracker holds ephemeral typing state per (conversation, user). State is
// cosmetic: it is never persisted and carries no ordering guarantee relative
// to message delivery.
type Tracker interface {
	SetTyping(ctx context.Context, conversationID, userID uuid.UUID) error
	ClearTyping(ctx context.Context, conversationID, userID uuid.UUID) error
	TypingUsers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error)
}

// MemoryTracker is the single-node Tracker. Entries expire lazily once the
// quiet window elapses with no further signal.
type MemoryTracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	// conversation -> user -> last signal time
	signals map[uuid.UUID]map[uuid.UUID]time.Time
}

func NewMemoryTracker(window time.Duration) *MemoryTracker {
	if window <= 0 {
		window = DefaultQuietWindow
	}
	return &MemoryTracker{
		window:  window,
		now:     time.Now,
		signals: make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (t *MemoryTracker) SetTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.signals[conversationID]
	if !ok {
		users = make(map[uuid.UUID]time.Time)
		t.signals[conversationID] = users
	}
	users[userID] = t.now()
	return nil
}

func (t *MemoryTracker) ClearTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if users, ok := t.signals[conversationID]; ok {
		delete(users, userID)
		if len(users) == 0 {
			delete(t.signals, conversationID)
		}
	}
	return nil
}

func (t *MemoryTracker) TypingUsers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	users, ok := t.signals[conversationID]
	if !ok {
		return nil, nil
	}
	cutoff := t.now().Add(-t.window)
	var typing []uuid.UUID
	for userID, last := range users {
		if last.Before(cutoff) {
			delete(users, userID)
			continue
		}
		typing = append(typing, userID)
	}
	if len(users) == 0 {
		delete(t.signals, conversationID)
	}
	return typing, nil
}
