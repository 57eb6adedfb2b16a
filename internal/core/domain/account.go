package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType classifies a savings account by its purpose. The allocation engine
// distributes income in a fixed priority order across these types.
type AccountType string

const (
	Daily      AccountType = "DAILY"
	Emergency  AccountType = "EMERGENCY"
	Investment AccountType = "INVESTMENT"
	LongTerm   AccountType = "LONG_TERM"
	Fun        AccountType = "FUN"
	Charity    AccountType = "CHARITY"
)

// AccountStatus is derived from the account balance relative to its target.
type AccountStatus string

const (
	StatusGreen AccountStatus = "green" // on target, or no target set
	StatusRed   AccountStatus = "red"   // balance below target
	StatusBlue  AccountStatus = "blue"  // balance above target
)

// Account represents one typed savings account belonging to a single user.
// Balance is mutated only through the ledger repository's conditional
// increment/decrement primitives, never via read-modify-write.
type Account struct {
	AccountID        string          `json:"accountID"`
	UserID           string          `json:"userID"`
	Name             string          `json:"name"`
	AccountType      AccountType     `json:"accountType"`
	CurrencyCode     string          `json:"currencyCode"`
	Balance          decimal.Decimal `json:"balance"`    // non-negative
	Percentage       decimal.Decimal `json:"percentage"` // target share of income, 0-100; shares need not sum to 100
	Target           decimal.Decimal `json:"target"`     // absolute balance threshold, zero means unset
	Status           AccountStatus   `json:"status"`
	IsAutoDistribute bool            `json:"isAutoDistribute"`
	IsWallet         bool            `json:"isWallet"` // at most one per user
	IsActive         bool            `json:"isActive"`
	AuditFields
}

// allocationPriority is the fixed ordering used both for income distribution and
// for shortfall expense recording. Unknown types sort last.
var allocationPriority = map[AccountType]int{
	Daily:      0,
	Emergency:  1,
	Investment: 2,
	LongTerm:   3,
	Fun:        4,
	Charity:    5,
}

// AllocationPriority returns the distribution rank for an account type.
func AllocationPriority(t AccountType) int {
	if p, ok := allocationPriority[t]; ok {
		return p
	}
	return len(allocationPriority)
}

// DeriveStatus computes the status of an account from balance vs target.
// A zero (unset) target always yields green.
func DeriveStatus(balance, target decimal.Decimal) AccountStatus {
	if target.LessThanOrEqual(decimal.Zero) {
		return StatusGreen
	}
	switch {
	case balance.LessThan(target):
		return StatusRed
	case balance.GreaterThan(target):
		return StatusBlue
	default:
		return StatusGreen
	}
}

// Shortfall returns target - balance when the account is below a positive target,
// zero otherwise.
func (a Account) Shortfall() decimal.Decimal {
	if a.Target.GreaterThan(decimal.Zero) && a.Balance.LessThan(a.Target) {
		return a.Target.Sub(a.Balance)
	}
	return decimal.Zero
}
