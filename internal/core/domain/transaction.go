package domain

import "github.com/shopspring/decimal"

// TransactionType indicates the direction of a money movement from the owning
// user's point of view.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// Bypass tags skip automatic distribution entirely: the amount is logged as a
// plain income transaction with no account mutation.
const (
	TagRent          = "rent"
	TagDebtRepayment = "debt_repayment"
	TagReimbursement = "reimbursement"
)

var bypassTags = map[string]struct{}{
	TagRent:          {},
	TagDebtRepayment: {},
	TagReimbursement: {},
}

// IsBypassTag reports whether the tag exempts an income event from allocation.
func IsBypassTag(tag string) bool {
	_, ok := bypassTags[tag]
	return ok
}

// Allocation is a single {account, amount} split resulting from one income event.
type Allocation struct {
	AccountID string          `json:"accountID"`
	Amount    decimal.Decimal `json:"amount"`
}

// Transaction is an immutable record of a single money movement. Created, never
// mutated or deleted.
type Transaction struct {
	TransactionID   string          `json:"transactionID"`
	UserID          string          `json:"userID"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionType TransactionType `json:"transactionType"`
	Description     string          `json:"description"`
	Tag             string          `json:"tag,omitempty"` // optional bypass marker
	CurrencyCode    string          `json:"currencyCode"`
	TransactionCode string          `json:"transactionCode"` // unique, human-legible
	Allocations     []Allocation    `json:"allocations,omitempty"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"` // total balance across all the user's accounts at write time
	AuditFields
}
