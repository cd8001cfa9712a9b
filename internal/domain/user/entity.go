package user

import (
	"context"

	"github.com/google/uuid"
)

// User is an identity snapshot owned by the external auth service. The core
// references users by id only and fetches display data through a Directory.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url"`
}

// Directory resolves user display data from the auth collaborator.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
}
