package domain

import "github.com/shopspring/decimal"

// EscrowHoldStatus is the state of funds reserved from a lender's accounts.
type EscrowHoldStatus string

const (
	HoldHeld     EscrowHoldStatus = "held"
	HoldReleased EscrowHoldStatus = "released"
	HoldRefunded EscrowHoldStatus = "refunded"
)

// PullPlanEntry is one account's share of an escrow hold.
type PullPlanEntry struct {
	AccountID   string          `json:"accountID"`
	AccountType AccountType     `json:"accountType"`
	Amount      decimal.Decimal `json:"amount"`
}

// PullPlan is the concrete per-account funding plan for an escrow hold, plus
// the lender's aggregate available balance across the permitted account types.
// Callers use TotalAvailable to report a precise insufficient-capacity error.
type PullPlan struct {
	Entries        []PullPlanEntry `json:"entries"`
	TotalAvailable decimal.Decimal `json:"totalAvailable"`
}

// Total sums the plan's per-account amounts.
func (p PullPlan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range p.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Escrow pairs one-to-one with a P2PLoan during its held/disbursed/refunded
// window. At most one escrow may be held per loan at a time.
type Escrow struct {
	EscrowID         string           `json:"escrowID"`
	LoanID           string           `json:"loanID"`
	LenderID         string           `json:"lenderID"`
	AmountHeld       decimal.Decimal  `json:"amountHeld"`
	HoldStatus       EscrowHoldStatus `json:"holdStatus"`
	DisbursementTxID string           `json:"disbursementTxID,omitempty"`
	RefundTxID       string           `json:"refundTxID,omitempty"`
	AuditFields
}
