package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"bazaar-chat/internal/commands"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/events"
	bazaar_errors "bazaar-chat/pkg/errors"
)

func TestSendMessageOfferTypeRequiresOfferRecord(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	// An OFFER message without an offer record would be a dangling carrier;
	// only the offer lifecycle may mint these.
	_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Type:           message.TypeOffer,
	})
	if err != bazaar_errors.ErrValidation {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if got, err := env.msgRepo.ListBySeq(context.Background(), conv.ID, 0, 10); err != nil || len(got) != 0 {
		t.Errorf("stored messages = %d, want 0", len(got))
	}
}

func TestSendMessageAssignsIncreasingOrder(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	var msgs []message.Message
	for i, content := range []string{"hi", "is this still available?", "yes"} {
		sender := alice
		if i == 2 {
			sender = bob
		}
		res, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
			ConversationID: conv.ID,
			SenderID:       sender,
			Content:        content,
		})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		msgs = append(msgs, res.Payload.(message.Message))
	}

	for i, m := range msgs {
		if m.SeqID != int64(i+1) {
			t.Errorf("message %d: seq = %d, want %d", i, m.SeqID, i+1)
		}
	}
	for i := 1; i < len(msgs); i++ {
		if !msgs[i].CreatedAt.After(msgs[i-1].CreatedAt) {
			t.Errorf("created_at not strictly increasing at %d: %v then %v", i, msgs[i-1].CreatedAt, msgs[i].CreatedAt)
		}
	}
}

func TestSendMessageStampsStrictlyAfterWithFrozenClock(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env.messages.now = func() time.Time { return frozen }

	var prev time.Time
	for i := 0; i < 3; i++ {
		res, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
			ConversationID: conv.ID,
			SenderID:       alice,
			Content:        "tick",
		})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		m := res.Payload.(message.Message)
		if i > 0 && !m.CreatedAt.After(prev) {
			t.Fatalf("send %d: created_at %v not after %v", i, m.CreatedAt, prev)
		}
		prev = m.CreatedAt
	}
}

func TestSendMessageNonParticipantForbidden(t *testing.T) {
	env := newTestEnv()
	conv := env.startConversation(t, uuid.New(), uuid.New())

	_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       uuid.New(),
		Content:        "let me in",
	})
	if err != bazaar_errors.ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSendMessageUnknownConversation(t *testing.T) {
	env := newTestEnv()

	_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Content:        "hello?",
	})
	if err != bazaar_errors.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSendMessageInactiveConversation(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	stored := env.convRepo.convs[conv.ID]
	stored.Active = false
	env.convRepo.convs[conv.ID] = stored

	_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "anyone there?",
	})
	if err != bazaar_errors.ErrInvalidState {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestSendMessageBlankTextRejected(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "   ",
	})
	if err != bazaar_errors.ErrValidation {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSendMessageClientIDIdempotent(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	cmd := commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "only once",
		ClientMsgID:    "client-42",
	}
	first, err := env.messages.HandleSendMessage(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := env.messages.HandleSendMessage(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second send: %v", err)
	}

	if first.AggregateID != second.AggregateID {
		t.Errorf("retry created a new message: %s vs %s", first.AggregateID, second.AggregateID)
	}
	if got := len(env.msgRepo.messages); got != 1 {
		t.Errorf("stored messages = %d, want 1", got)
	}
	p, _ := env.convRepo.GetParticipant(context.Background(), conv.ID, bob)
	if p.UnreadCount != 1 {
		t.Errorf("recipient unread = %d, want 1", p.UnreadCount)
	}
}

func TestSendMessageIncrementsRecipientUnreadOnly(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	created := env.collectEvents(events.EventTypeMessageCreated)

	if _, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
		ConversationID: conv.ID,
		SenderID:       alice,
		Content:        "ping",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	pBob, _ := env.convRepo.GetParticipant(context.Background(), conv.ID, bob)
	pAlice, _ := env.convRepo.GetParticipant(context.Background(), conv.ID, alice)
	if pBob.UnreadCount != 1 || pAlice.UnreadCount != 0 {
		t.Errorf("unread counts = sender %d recipient %d, want 0/1", pAlice.UnreadCount, pBob.UnreadCount)
	}
	if len(*created) != 1 {
		t.Fatalf("message.created events = %d, want 1", len(*created))
	}
	if env.eventRepo.count() != 1 {
		t.Errorf("outbox rows = %d, want 1", env.eventRepo.count())
	}
}

func TestListMessagesAfterSeq(t *testing.T) {
	env := newTestEnv()
	alice, bob := uuid.New(), uuid.New()
	conv := env.startConversation(t, alice, bob)

	for i := 0; i < 5; i++ {
		if _, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
			ConversationID: conv.ID,
			SenderID:       alice,
			Content:        "m",
		}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	page, err := env.messages.GetConversationMessages(context.Background(), conv.ID, 2, 2, bob)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].SeqID != 3 || page[1].SeqID != 4 {
		t.Fatalf("page seqs = %v, want [3 4]", seqsOf(page))
	}

	_, err = env.messages.GetConversationMessages(context.Background(), conv.ID, 0, 10, uuid.New())
	if err != bazaar_errors.ErrForbidden {
		t.Fatalf("outsider list err = %v, want ErrForbidden", err)
	}
}

func seqsOf(msgs []message.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.SeqID)
	}
	return out
}

func TestSendMessageParallelAcrossConversations(t *testing.T) {
	env := newTestEnv()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	convAB := env.startConversation(t, alice, bob)
	convAC := env.startConversation(t, alice, carol)

	// Appends on different conversations run in parallel against the same
	// service instance; each conversation still gets a gapless sequence.
	const perConv = 20
	errs := make(chan error, 2*perConv)
	var wg sync.WaitGroup
	for _, convID := range []uuid.UUID{convAB.ID, convAC.ID} {
		convID := convID
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perConv; i++ {
				_, err := env.messages.HandleSendMessage(context.Background(), commands.SendMessageCommand{
					ConversationID: convID,
					SenderID:       alice,
					Content:        "ping",
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("send: %v", err)
	}

	for _, convID := range []uuid.UUID{convAB.ID, convAC.ID} {
		msgs, err := env.msgRepo.ListBySeq(context.Background(), convID, 0, perConv+1)
		if err != nil {
			t.Fatalf("list %s: %v", convID, err)
		}
		if len(msgs) != perConv {
			t.Fatalf("conversation %s: %d messages, want %d", convID, len(msgs), perConv)
		}
		for i, m := range msgs {
			if m.SeqID != int64(i+1) {
				t.Errorf("conversation %s: seq[%d] = %d, want %d", convID, i, m.SeqID, i+1)
			}
		}
	}
}
