package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	"github.com/stashpal/stashpal_backend/internal/dto"
)

// LoanSvcFacade drives the P2P loan lifecycle.
type LoanSvcFacade interface {
	// ComputeEligibility derives the borrowing limits for a borrower-lender pair
	// without exposing either party's raw balances.
	ComputeEligibility(ctx context.Context, borrowerID string, lenderID string) (*dto.EligibilityResponse, error)

	// RequestLoan creates a pending_approval loan after policy checks (monthly
	// cap, cool-off window).
	RequestLoan(ctx context.Context, borrowerID string, req dto.RequestLoanRequest) (*domain.P2PLoan, []domain.Notification, error)

	// ApproveLoan is the lender's approval: holds escrow funds and disburses the
	// principal to the borrower, activating the loan.
	ApproveLoan(ctx context.Context, lenderID string, loanID string, req dto.ApproveLoanRequest) (*domain.P2PLoan, []domain.Notification, error)

	// DeclineLoan is the lender's rejection of a pending request.
	DeclineLoan(ctx context.Context, lenderID string, loanID string) (*domain.P2PLoan, []domain.Notification, error)

	// Repay applies a manual borrower repayment through the settlement transfer.
	Repay(ctx context.Context, borrowerID string, loanID string, req dto.RepayLoanRequest) (*domain.P2PLoan, []domain.Notification, error)

	// WriteOff terminally forgives the outstanding balance. Lender only. A held
	// escrow is refunded first.
	WriteOff(ctx context.Context, lenderID string, loanID string) (*domain.P2PLoan, []domain.Notification, error)

	GetLoanByID(ctx context.Context, userID string, loanID string) (*domain.P2PLoan, error)
	ListLoans(ctx context.Context, userID string, params dto.ListLoansParams) ([]dto.LoanResponse, error)
}
