package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/domain/event"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/offer"
	"bazaar-chat/internal/domain/user"
	"bazaar-chat/internal/events"
	bazaar_errors "bazaar-chat/pkg/errors"
)

type fakeConversationRepo struct {
	mu     sync.Mutex
	convs  map[uuid.UUID]conversation.Conversation
	byPair map[string]uuid.UUID
	seqs   map[uuid.UUID]int64
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		convs:  make(map[uuid.UUID]conversation.Conversation),
		byPair: make(map[string]uuid.UUID),
		seqs:   make(map[uuid.UUID]int64),
	}
}

func (r *fakeConversationRepo) Create(ctx context.Context, c *conversation.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byPair[c.PairKey]; exists {
		return bazaar_errors.ErrAlreadyExists
	}
	r.convs[c.ID] = *c
	r.byPair[c.PairKey] = c.ID
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[id]
	if !ok {
		return conversation.Conversation{}, bazaar_errors.ErrNotFound
	}
	return c, nil
}

func (r *fakeConversationRepo) GetByPairKey(ctx context.Context, pairKey string) (conversation.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPair[pairKey]
	if !ok {
		return conversation.Conversation{}, bazaar_errors.ErrNotFound
	}
	return r.convs[id], nil
}

func (r *fakeConversationRepo) GetUserConversations(ctx context.Context, userID uuid.UUID, page, limit int) ([]conversation.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []conversation.Conversation
	for _, c := range r.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, int64(len(out)), nil
}

func (r *fakeConversationRepo) SetItem(ctx context.Context, conversationID, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return bazaar_errors.ErrNotFound
	}
	c.ItemID = uuid.NullUUID{UUID: itemID, Valid: true}
	r.convs[conversationID] = c
	return nil
}

func (r *fakeConversationRepo) GetParticipant(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return conversation.Participant{}, bazaar_errors.ErrNotFound
	}
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return conversation.Participant{}, bazaar_errors.ErrNotFound
}

func (r *fakeConversationRepo) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return false, nil
	}
	return c.HasParticipant(userID), nil
}

func (r *fakeConversationRepo) SetLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return bazaar_errors.ErrNotFound
	}
	c.LastMessageID = uuid.NullUUID{UUID: messageID, Valid: true}
	c.UpdatedAt = at
	r.convs[conversationID] = c
	return nil
}

func (r *fakeConversationRepo) IncrementUnread(ctx context.Context, conversationID uuid.UUID, exceptUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return bazaar_errors.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID != exceptUserID {
			c.Participants[i].UnreadCount++
		}
	}
	r.convs[conversationID] = c
	return nil
}

func (r *fakeConversationRepo) ResetUnread(ctx context.Context, conversationID, userID uuid.UUID, readAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.convs[conversationID]
	if !ok {
		return bazaar_errors.ErrNotFound
	}
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			c.Participants[i].UnreadCount = 0
			at := readAt
			c.Participants[i].LastReadAt = &at
		}
	}
	r.convs[conversationID] = c
	return nil
}

func (r *fakeConversationRepo) UnreadTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, c := range r.convs {
		for _, p := range c.Participants {
			if p.UserID == userID {
				total += int64(p.UnreadCount)
			}
		}
	}
	return total, nil
}

func (r *fakeConversationRepo) IncrementSequence(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[conversationID]++
	return r.seqs[conversationID], nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []message.Message
	createErr error
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

// failNextCreate makes the next Create return err, then clears itself.
func (r *fakeMessageRepo) failNextCreate(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createErr = err
}

func (r *fakeMessageRepo) Create(ctx context.Context, m *message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		err := r.createErr
		r.createErr = nil
		return err
	}
	r.messages = append(r.messages, *m)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return message.Message{}, bazaar_errors.ErrNotFound
}

func (r *fakeMessageRepo) ListBySeq(ctx context.Context, conversationID uuid.UUID, afterSeq int64, limit int) ([]message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []message.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.SeqID > afterSeq {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqID < out[j].SeqID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) GetByClientMessageID(ctx context.Context, conversationID uuid.UUID, clientMessageID string) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.ClientMessageID.Valid && m.ClientMessageID.String == clientMessageID {
			return m, nil
		}
	}
	return message.Message{}, bazaar_errors.ErrNotFound
}

func (r *fakeMessageRepo) GetLatestMessage(ctx context.Context, conversationID uuid.UUID) (message.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *message.Message
	for i, m := range r.messages {
		if m.ConversationID != conversationID {
			continue
		}
		if latest == nil || m.SeqID > latest.SeqID {
			latest = &r.messages[i]
		}
	}
	if latest == nil {
		return message.Message{}, bazaar_errors.ErrNotFound
	}
	return *latest, nil
}

type fakeOfferRepo struct {
	mu     sync.Mutex
	offers map[uuid.UUID]offer.Offer
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{offers: make(map[uuid.UUID]offer.Offer)}
}

func (r *fakeOfferRepo) Create(ctx context.Context, o *offer.Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers[o.ID] = *o
	return nil
}

func (r *fakeOfferRepo) GetByID(ctx context.Context, id uuid.UUID) (offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok {
		return offer.Offer{}, bazaar_errors.ErrNotFound
	}
	return o, nil
}

func (r *fakeOfferRepo) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.offers[id]
	if !ok || o.Status != offer.StatusPending {
		return false, nil
	}
	o.Status = status
	o.UpdatedAt = at
	r.offers[id] = o
	return true, nil
}

func (r *fakeOfferRepo) ListPendingExpired(ctx context.Context, now time.Time, limit int) ([]offer.Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []offer.Offer
	for _, o := range r.offers {
		if o.Status == offer.StatusPending && now.After(o.ExpiresAt) {
			out = append(out, o)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []event.OutboxEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{}
}

func (r *fakeEventRepo) CreateOutboxEvent(ctx context.Context, ev *event.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

func (r *fakeEventRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fakeDirectory struct {
	users map[uuid.UUID]user.User
}

func (d *fakeDirectory) GetUser(ctx context.Context, id uuid.UUID) (user.User, error) {
	if u, ok := d.users[id]; ok {
		return u, nil
	}
	return user.User{ID: id}, nil
}

// testEnv wires the service layer against in-memory repositories. db is nil
// so every command runs the direct path.
type testEnv struct {
	convRepo  *fakeConversationRepo
	msgRepo   *fakeMessageRepo
	offerRepo *fakeOfferRepo
	eventRepo *fakeEventRepo
	directory *fakeDirectory

	eventBus *events.Bus
	bus      *commands.Bus

	messages      *MessageService
	conversations *ConversationService
	offers        *OfferService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		convRepo:  newFakeConversationRepo(),
		msgRepo:   newFakeMessageRepo(),
		offerRepo: newFakeOfferRepo(),
		eventRepo: newFakeEventRepo(),
		directory: &fakeDirectory{users: make(map[uuid.UUID]user.User)},
		eventBus:  events.NewBus(),
		bus:       commands.NewBus(),
	}
	locks := NewConversationLocks()
	env.messages = NewMessageService(nil, env.msgRepo, env.convRepo, env.eventRepo, env.bus, env.eventBus, locks)
	env.conversations = NewConversationService(nil, env.convRepo, env.msgRepo, env.eventRepo, env.directory, env.bus, env.eventBus, locks)
	env.offers = NewOfferService(nil, env.offerRepo, env.convRepo, env.messages, env.bus, env.eventBus, nil)
	return env
}

func (env *testEnv) startConversation(t *testing.T, a, b uuid.UUID) conversation.Conversation {
	t.Helper()
	conv, err := env.conversations.CreateOrGet(context.Background(), commands.StartConversationCommand{
		InitiatorID: a,
		PeerID:      b,
	})
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}
	return conv
}

func (env *testEnv) collectEvents(eventType string) *[]events.Envelope {
	collected := &[]events.Envelope{}
	env.eventBus.Subscribe(eventType, func(ctx context.Context, e events.Envelope) {
		*collected = append(*collected, e)
	})
	return collected
}
