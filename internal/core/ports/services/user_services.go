package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	"github.com/stashpal/stashpal_backend/internal/dto"
)

// UserSvcFacade covers the minimal identity plumbing the lending core needs:
// registration and credential login issuing a JWT.
type UserSvcFacade interface {
	Register(ctx context.Context, req dto.RegisterUserRequest) (*domain.User, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	GetUserByID(ctx context.Context, userID string) (*domain.User, error)
}
