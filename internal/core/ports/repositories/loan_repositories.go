package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// LoanRole filters loan listings by the side the user is on.
type LoanRole string

const (
	RoleBorrower LoanRole = "borrower"
	RoleLender   LoanRole = "lender"
	RoleAny      LoanRole = "any"
)

// LoanRepository persists P2P loans and their scheduling metadata.
type LoanRepository interface {
	// SaveLoan persists a new loan.
	SaveLoan(ctx context.Context, loan domain.P2PLoan) error

	// UpdateLoan replaces the loan's mutable state (status, schedule, escrow
	// linkage, retry metadata).
	UpdateLoan(ctx context.Context, loan domain.P2PLoan) error

	// FindLoanByID retrieves a loan by its ID.
	FindLoanByID(ctx context.Context, loanID string) (*domain.P2PLoan, error)

	// ListLoansByUserID retrieves loans where the user participates in the given
	// role, newest first.
	ListLoansByUserID(ctx context.Context, userID string, role LoanRole, limit int, offset int) ([]domain.P2PLoan, error)

	// FindAutoDeductDue selects loans eligible for an auto-deduction attempt:
	// autoDeduct enabled, non-terminal working status, outstanding balance, next
	// payment due at or before now, no pending backoff, and retry count under
	// maxRetries. Ordered by soonest due date, bounded to batchSize.
	FindAutoDeductDue(ctx context.Context, now time.Time, maxRetries int, batchSize int) ([]domain.P2PLoan, error)

	// SumPrincipalRequestedSince sums principal across the borrower's loan
	// requests created at or after since, regardless of outcome. Used for the
	// monthly borrowing cap.
	SumPrincipalRequestedSince(ctx context.Context, borrowerID string, since time.Time) (decimal.Decimal, error)

	// FindLatestRequestAt returns the creation time of the borrower's most recent
	// loan request, or nil if they have none. Used for the cool-off window.
	FindLatestRequestAt(ctx context.Context, borrowerID string) (*time.Time, error)
}

// EscrowRepository persists escrow records.
type EscrowRepository interface {
	// SaveEscrow persists a new escrow record.
	SaveEscrow(ctx context.Context, escrow domain.Escrow) error

	// UpdateEscrow replaces the escrow's mutable state.
	UpdateEscrow(ctx context.Context, escrow domain.Escrow) error

	// FindEscrowByID retrieves an escrow by its ID.
	FindEscrowByID(ctx context.Context, escrowID string) (*domain.Escrow, error)

	// FindHeldEscrowByLoanID retrieves the escrow currently held for a loan, or
	// ErrNotFound if none is held.
	FindHeldEscrowByLoanID(ctx context.Context, loanID string) (*domain.Escrow, error)
}
