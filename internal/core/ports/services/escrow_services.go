package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// EscrowSvcFacade moves money atomically between two users through an escrow.
// HoldFunds, Disburse, SettlementTransfer and Refund are each one all-or-nothing
// storage transaction: a failure at any step leaves no partial mutation visible.
type EscrowSvcFacade interface {
	// ComputePullPlan distributes total across the lender's permitted accounts by
	// the fixed source-priority weights (Fun 50%, Charity 30%, Daily 20%),
	// clamped to availability, topping up greedily when a weighted share cannot
	// be met. Emergency and LongTerm accounts are excluded unless the loan was
	// explicitly approved for emergency draw.
	ComputePullPlan(ctx context.Context, lenderID string, total decimal.Decimal, includeProtected bool) (*domain.PullPlan, error)

	// HoldFunds reserves the loan principal from the lender's accounts and marks
	// the escrow held. Fails with InsufficientCapacityError when the plan cannot
	// cover the principal, leaving every balance untouched.
	HoldFunds(ctx context.Context, loan *domain.P2PLoan) (*domain.Escrow, error)

	// Disburse credits the borrower with the held principal, releases the escrow
	// and activates the loan.
	Disburse(ctx context.Context, loan *domain.P2PLoan) error

	// SettlementTransfer atomically debits the borrower's deduction account and
	// credits the lender. Shared by manual repayment and the auto-deduct
	// scheduler. Fails with ErrInsufficientFunds when the borrower is short.
	SettlementTransfer(ctx context.Context, loan *domain.P2PLoan, amount decimal.Decimal) error

	// Refund returns the full held amount to the lender. Only valid while the
	// escrow is held.
	Refund(ctx context.Context, loan *domain.P2PLoan) error
}
