package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// CreateAccountRequest defines the data needed to create a new savings account.
type CreateAccountRequest struct {
	Name             string             `json:"name" binding:"required"`
	AccountType      domain.AccountType `json:"accountType" binding:"required,oneof=DAILY EMERGENCY INVESTMENT LONG_TERM FUN CHARITY"`
	CurrencyCode     string             `json:"currencyCode"`
	Percentage       decimal.Decimal    `json:"percentage" binding:"dpercent"` // 0-100
	Target           decimal.Decimal    `json:"target"`
	IsAutoDistribute *bool              `json:"isAutoDistribute"` // default true
	IsWallet         bool               `json:"isWallet"`
}

// UpdateAccountRequest defines the fields a user may change on an account.
// Pointers distinguish zero-value updates from fields not provided.
type UpdateAccountRequest struct {
	Name             *string          `json:"name"`
	Percentage       *decimal.Decimal `json:"percentage" binding:"omitempty,dpercent"`
	Target           *decimal.Decimal `json:"target"`
	IsAutoDistribute *bool            `json:"isAutoDistribute"`
	IsWallet         *bool            `json:"isWallet"`
}

// AccountResponse defines the data returned for an account.
type AccountResponse struct {
	AccountID        string               `json:"accountID"`
	Name             string               `json:"name"`
	AccountType      domain.AccountType   `json:"accountType"`
	CurrencyCode     string               `json:"currencyCode"`
	Balance          decimal.Decimal      `json:"balance"`
	Percentage       decimal.Decimal      `json:"percentage"`
	Target           decimal.Decimal      `json:"target"`
	Status           domain.AccountStatus `json:"status"`
	IsAutoDistribute bool                 `json:"isAutoDistribute"`
	IsWallet         bool                 `json:"isWallet"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastUpdatedAt    time.Time            `json:"lastUpdatedAt"`
}

// ToAccountResponse converts a domain.Account to AccountResponse DTO.
func ToAccountResponse(acc *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:        acc.AccountID,
		Name:             acc.Name,
		AccountType:      acc.AccountType,
		CurrencyCode:     acc.CurrencyCode,
		Balance:          acc.Balance,
		Percentage:       acc.Percentage,
		Target:           acc.Target,
		Status:           acc.Status,
		IsAutoDistribute: acc.IsAutoDistribute,
		IsWallet:         acc.IsWallet,
		CreatedAt:        acc.CreatedAt,
		LastUpdatedAt:    acc.LastUpdatedAt,
	}
}

// ToListAccountResponse converts a slice of domain.Account to response DTOs.
func ToListAccountResponse(accounts []domain.Account) []AccountResponse {
	res := make([]AccountResponse, len(accounts))
	for i, acc := range accounts {
		res[i] = ToAccountResponse(&acc)
	}
	return res
}

// ListAccountsResponse wraps the list of accounts with the aggregate balance.
type ListAccountsResponse struct {
	Accounts     []AccountResponse `json:"accounts"`
	TotalBalance decimal.Decimal   `json:"totalBalance"`
}
