package memory

import (
	"context"
	"fmt"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
)

type escrowData dataset

var _ portsrepo.EscrowRepository = (*escrowData)(nil)

func (d *escrowData) SaveEscrow(ctx context.Context, escrow domain.Escrow) error {
	if _, ok := d.escrows[escrow.EscrowID]; ok {
		return fmt.Errorf("%w: escrow with ID %s already exists", apperrors.ErrDuplicate, escrow.EscrowID)
	}
	if escrow.HoldStatus == domain.HoldHeld {
		for _, existing := range d.escrows {
			if existing.LoanID == escrow.LoanID && existing.HoldStatus == domain.HoldHeld {
				return fmt.Errorf("%w: an escrow is already held for loan %s", apperrors.ErrConflict, escrow.LoanID)
			}
		}
	}
	d.escrows[escrow.EscrowID] = escrow
	return nil
}

func (d *escrowData) UpdateEscrow(ctx context.Context, escrow domain.Escrow) error {
	if _, ok := d.escrows[escrow.EscrowID]; !ok {
		return apperrors.ErrNotFound
	}
	d.escrows[escrow.EscrowID] = escrow
	return nil
}

func (d *escrowData) FindEscrowByID(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	escrow, ok := d.escrows[escrowID]
	if !ok {
		return nil, fmt.Errorf("%w: escrow %s", apperrors.ErrNotFound, escrowID)
	}
	return &escrow, nil
}

func (d *escrowData) FindHeldEscrowByLoanID(ctx context.Context, loanID string) (*domain.Escrow, error) {
	for _, escrow := range d.escrows {
		if escrow.LoanID == loanID && escrow.HoldStatus == domain.HoldHeld {
			e := escrow
			return &e, nil
		}
	}
	return nil, fmt.Errorf("%w: no held escrow for loan %s", apperrors.ErrNotFound, loanID)
}

type lockedEscrowRepository struct {
	s *Store
}

var _ portsrepo.EscrowRepository = (*lockedEscrowRepository)(nil)

func (r *lockedEscrowRepository) SaveEscrow(ctx context.Context, escrow domain.Escrow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*escrowData)(r.s.data).SaveEscrow(ctx, escrow)
}

func (r *lockedEscrowRepository) UpdateEscrow(ctx context.Context, escrow domain.Escrow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*escrowData)(r.s.data).UpdateEscrow(ctx, escrow)
}

func (r *lockedEscrowRepository) FindEscrowByID(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*escrowData)(r.s.data).FindEscrowByID(ctx, escrowID)
}

func (r *lockedEscrowRepository) FindHeldEscrowByLoanID(ctx context.Context, loanID string) (*domain.Escrow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*escrowData)(r.s.data).FindHeldEscrowByLoanID(ctx, loanID)
}
