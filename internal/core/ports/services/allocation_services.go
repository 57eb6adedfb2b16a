package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	"github.com/stashpal/stashpal_backend/internal/dto"
)

// AllocationSvcFacade splits income events across a user's accounts.
//
// AllocateIncome returns the allocation result together with the post-commit
// notification events it produced; the caller hands those to the dispatcher
// after responding. Notification delivery can never fail the allocation.
type AllocationSvcFacade interface {
	AllocateIncome(ctx context.Context, userID string, req dto.AllocateIncomeRequest) (*dto.AllocationResult, []domain.Notification, error)
}
