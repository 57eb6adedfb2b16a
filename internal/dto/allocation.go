package dto

import (
	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// AllocateIncomeRequest defines one inbound income event.
//
// Destination resolution: Target=="wallet" or a non-empty AccountID routes the
// full amount to a single account; otherwise the amount auto-distributes across
// the user's accounts by percentage.
type AllocateIncomeRequest struct {
	Amount       decimal.Decimal `json:"amount" binding:"required,dpositive"`
	Description  string          `json:"description" binding:"required"`
	Tag          string          `json:"tag"`
	Target       string          `json:"target" binding:"omitempty,oneof=wallet"`
	AccountID    string          `json:"accountID"`
	CurrencyCode string          `json:"currencyCode"`
}

// AllocationEntry reports one per-account split with the account's resulting
// state.
type AllocationEntry struct {
	AccountID   string               `json:"accountID"`
	AccountType domain.AccountType   `json:"accountType"`
	Amount      decimal.Decimal      `json:"amount"`
	NewBalance  decimal.Decimal      `json:"newBalance"`
	Status      domain.AccountStatus `json:"status"`
	Shortfall   decimal.Decimal      `json:"shortfall,omitempty"`
}

// AllocationResult is the outcome of one income allocation.
type AllocationResult struct {
	Allocations     []AllocationEntry   `json:"allocations"`
	MainTransaction TransactionResponse `json:"mainTransaction"`
	CurrentBalance  decimal.Decimal     `json:"currentBalance"`
}
