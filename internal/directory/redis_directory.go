package directory

import (
	"context"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"bazaar-chat/internal/domain/user"
)

const profileKeyPrefix = "user:profile:"

// RedisDirectory reads user display data from Redis hashes maintained by the
// identity service. A missing profile is not an error: the core only needs
// the id, display data is best effort.
type RedisDirectory struct {
	client *goredis.Client
}

func NewRedisDirectory(client *goredis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func (d *RedisDirectory) GetUser(ctx context.Context, id uuid.UUID) (user.User, error) {
	u := user.User{ID: id}
	fields, err := d.client.HGetAll(ctx, profileKeyPrefix+id.String()).Result()
	if err != nil {
		return u, err
	}
	u.DisplayName = fields["display_name"]
	u.AvatarURL = fields["avatar_url"]
	return u, nil
}
