package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// appendGuard is the single logical writer for one conversation. All
// mutating operations on a conversation (message appends, offer
// transitions, read acknowledgements) run while holding it, which is what
// guarantees the strict total order of the log. Independent conversations
// hold independent guards and proceed in parallel.
type appendGuard struct {
	sync.Mutex
	lastStamp time.Time
}

// Stamp returns a created_at value strictly after every previous one handed
// out for this conversation. Must be called with the guard held.
func (g *appendGuard) Stamp(now time.Time) time.Time {
	if !now.After(g.lastStamp) {
		now = g.lastStamp.Add(time.Nanosecond)
	}
	g.lastStamp = now
	return now
}

// ConversationLocks hands out per-conversation append guards.
type ConversationLocks struct {
	mu     sync.Mutex
	guards map[uuid.UUID]*appendGuard
}

func NewConversationLocks() *ConversationLocks {
	return &ConversationLocks{guards: make(map[uuid.UUID]*appendGuard)}
}

func (l *ConversationLocks) Guard(conversationID uuid.UUID) *appendGuard {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.guards[conversationID]
	if !ok {
		g = &appendGuard{}
		l.guards[conversationID] = g
	}
	return g
}
