package memory

import (
	"context"
	"fmt"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
)

type userData dataset

var _ portsrepo.UserRepository = (*userData)(nil)

func (d *userData) SaveUser(ctx context.Context, user domain.User) error {
	if _, ok := d.users[user.UserID]; ok {
		return fmt.Errorf("%w: user with ID %s already exists", apperrors.ErrDuplicate, user.UserID)
	}
	if _, ok := d.usersByEmail[user.Email]; ok {
		return fmt.Errorf("%w: email %s already registered", apperrors.ErrDuplicate, user.Email)
	}
	d.users[user.UserID] = user
	d.usersByEmail[user.Email] = user.UserID
	return nil
}

func (d *userData) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	user, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, userID)
	}
	return &user, nil
}

func (d *userData) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	userID, ok := d.usersByEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user with email %s", apperrors.ErrNotFound, email)
	}
	user := d.users[userID]
	return &user, nil
}

type lockedUserRepository struct {
	s *Store
}

var _ portsrepo.UserRepository = (*lockedUserRepository)(nil)

func (r *lockedUserRepository) SaveUser(ctx context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*userData)(r.s.data).SaveUser(ctx, user)
}

func (r *lockedUserRepository) FindUserByID(ctx context.Context, userID string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*userData)(r.s.data).FindUserByID(ctx, userID)
}

func (r *lockedUserRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*userData)(r.s.data).FindUserByEmail(ctx, email)
}
