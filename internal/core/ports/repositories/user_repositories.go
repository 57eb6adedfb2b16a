package repositories

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// UserRepository persists the minimal user records the lending core needs.
type UserRepository interface {
	SaveUser(ctx context.Context, user domain.User) error
	FindUserByID(ctx context.Context, userID string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
