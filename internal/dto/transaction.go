package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// TransactionResponse defines the data returned for a transaction record.
type TransactionResponse struct {
	TransactionID   string                 `json:"transactionID"`
	Amount          decimal.Decimal        `json:"amount"`
	TransactionType domain.TransactionType `json:"transactionType"`
	Description     string                 `json:"description"`
	Tag             string                 `json:"tag,omitempty"`
	CurrencyCode    string                 `json:"currencyCode"`
	TransactionCode string                 `json:"transactionCode"`
	Allocations     []domain.Allocation    `json:"allocations,omitempty"`
	BalanceAfter    decimal.Decimal        `json:"balanceAfter"`
	CreatedAt       time.Time              `json:"createdAt"`
}

// ToTransactionResponse converts a domain.Transaction to its response DTO.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:   txn.TransactionID,
		Amount:          txn.Amount,
		TransactionType: txn.TransactionType,
		Description:     txn.Description,
		Tag:             txn.Tag,
		CurrencyCode:    txn.CurrencyCode,
		TransactionCode: txn.TransactionCode,
		Allocations:     txn.Allocations,
		BalanceAfter:    txn.BalanceAfter,
		CreatedAt:       txn.CreatedAt,
	}
}

// ToTransactionResponses converts a slice of transactions.
func ToTransactionResponses(txns []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, len(txns))
	for i := range txns {
		res[i] = ToTransactionResponse(&txns[i])
	}
	return res
}

// ListTransactionsParams defines query parameters for listing transactions.
type ListTransactionsParams struct {
	Limit     int     `form:"limit,default=20"`
	NextToken *string `form:"nextToken"`
}

// ListTransactionsResponse wraps a page of transactions with the cursor for the
// next page, if any.
type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextToken    *string               `json:"nextToken,omitempty"`
}
