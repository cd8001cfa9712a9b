package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes for presence
const (
	typingKeyPrefix   = "typing:"    // Sorted set keyed by conversation, score = signal deadline
	lastSeenKeyPrefix = "last_seen:" // Per-user heartbeat timestamp
)

// PresenceStore is the Redis-backed presence tracker for multi-node
// deployments. Typing entries live in a per-conversation sorted set scored
// by their expiry deadline so stale signals fall out of range reads.
type PresenceStore struct {
	client *goredis.Client
	window time.Duration
}

func NewPresenceStore(client *goredis.Client, window time.Duration) *PresenceStore {
	if window <= 0 {
		window = 3 * time.Second
	}
	return &PresenceStore{client: client, window: window}
}

func typingKey(conversationID uuid.UUID) string {
	return typingKeyPrefix + conversationID.String()
}

// SetTyping records a typing signal and resets the quiet window.
func (p *PresenceStore) SetTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	now := time.Now()
	key := typingKey(conversationID)

	pipe := p.client.Pipeline()
	pipe.ZAdd(ctx, key, goredis.Z{
		Score:  float64(now.Add(p.window).UnixMilli()),
		Member: userID.String(),
	})
	// Key TTL covers the whole set; individual entries expire by score.
	pipe.Expire(ctx, key, p.window*2)
	pipe.Set(ctx, lastSeenKeyPrefix+userID.String(), now.UnixMilli(), 24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// ClearTyping removes a user's typing signal before the window elapses.
func (p *PresenceStore) ClearTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	return p.client.ZRem(ctx, typingKey(conversationID), userID.String()).Err()
}

// TypingUsers returns users whose typing signal is still inside the quiet
// window, pruning expired entries as a side effect.
func (p *PresenceStore) TypingUsers(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	key := typingKey(conversationID)
	nowMilli := time.Now().UnixMilli()

	if err := p.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(nowMilli, 10)).Err(); err != nil {
		return nil, err
	}
	members, err := p.client.ZRangeByScore(ctx, key, &goredis.ZRangeBy{
		Min: fmt.Sprintf("(%d", nowMilli),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	users := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

// LastSeen returns the last heartbeat for a user, zero time when unknown.
func (p *PresenceStore) LastSeen(ctx context.Context, userID uuid.UUID) (time.Time, error) {
	val, err := p.client.Get(ctx, lastSeenKeyPrefix+userID.String()).Result()
	if err == goredis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}
