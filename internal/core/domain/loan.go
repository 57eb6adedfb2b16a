package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a P2P loan.
//
// pending_approval -> {approved, declined}
// approved -> funded (escrow held) -> active (disbursed)
// active <-> overdue, driven by nextPaymentDate vs now
// {active, overdue} -> repaid when remainingAmount reaches zero
// any non-terminal -> written_off by explicit lender action
type LoanStatus string

const (
	LoanPendingApproval LoanStatus = "pending_approval"
	LoanApproved        LoanStatus = "approved"
	LoanDeclined        LoanStatus = "declined"
	LoanFunded          LoanStatus = "funded"
	LoanActive          LoanStatus = "active"
	LoanOverdue         LoanStatus = "overdue"
	LoanRepaid          LoanStatus = "repaid"
	LoanWrittenOff      LoanStatus = "written_off"
)

// IsTerminal reports whether no further transitions are allowed from the status.
func (s LoanStatus) IsTerminal() bool {
	return s == LoanDeclined || s == LoanRepaid || s == LoanWrittenOff
}

// EscrowStatus tracks the loan's view of its escrow funds.
type EscrowStatus string

const (
	EscrowNone      EscrowStatus = "none"
	EscrowHeld      EscrowStatus = "held"
	EscrowDisbursed EscrowStatus = "disbursed"
)

// RepaymentCadence is the fixed interval between schedule installments.
type RepaymentCadence string

const (
	CadenceDaily    RepaymentCadence = "daily"
	CadenceWeekly   RepaymentCadence = "weekly"
	CadenceBiweekly RepaymentCadence = "biweekly"
	CadenceMonthly  RepaymentCadence = "monthly"
)

// Advance returns the due date one cadence step after t.
func (c RepaymentCadence) Advance(t time.Time) time.Time {
	switch c {
	case CadenceDaily:
		return t.AddDate(0, 0, 1)
	case CadenceWeekly:
		return t.AddDate(0, 0, 7)
	case CadenceBiweekly:
		return t.AddDate(0, 0, 14)
	default:
		return t.AddDate(0, 1, 0)
	}
}

// ScheduleEntry is one installment of a loan's repayment schedule. A partially
// satisfied entry has its remaining amount reduced in place and stays unpaid.
type ScheduleEntry struct {
	DueDate  time.Time       `json:"dueDate"`
	Amount   decimal.Decimal `json:"amount"`
	Paid     bool            `json:"paid"`
	PaidDate *time.Time      `json:"paidDate,omitempty"`
}

// P2PLoan represents one borrower-lender agreement. Created on request, mutated
// through every lifecycle transition, never deleted.
type P2PLoan struct {
	LoanID             string           `json:"loanID"`
	BorrowerID         string           `json:"borrowerID"`
	LenderID           string           `json:"lenderID"`
	Principal          decimal.Decimal  `json:"principal"`
	InterestRate       decimal.Decimal  `json:"interestRate"` // fraction, e.g. 0.05 for 5%
	TotalAmount        decimal.Decimal  `json:"totalAmount"`
	RemainingAmount    decimal.Decimal  `json:"remainingAmount"`
	CurrencyCode       string           `json:"currencyCode"`
	RepaymentSchedule  []ScheduleEntry  `json:"repaymentSchedule"`
	Cadence            RepaymentCadence `json:"cadence"`
	Status             LoanStatus       `json:"status"`
	EscrowID           string           `json:"escrowID,omitempty"`
	EscrowStatus       EscrowStatus     `json:"escrowStatus"`
	EmergencyApproved  bool             `json:"emergencyApproved"` // lender approved drawing from Emergency/LongTerm
	AutoDeduct         bool             `json:"autoDeduct"`
	AccountDeductionID string           `json:"accountDeductionID,omitempty"` // borrower account debited first
	AutoRetryCount     int              `json:"autoRetryCount"`
	NextAutoAttemptAt  *time.Time       `json:"nextAutoAttemptAt,omitempty"`
	LastAutoAttemptAt  *time.Time       `json:"lastAutoAttemptAt,omitempty"`
	NextPaymentDate    *time.Time       `json:"nextPaymentDate,omitempty"`
	NextPaymentAmount  decimal.Decimal  `json:"nextPaymentAmount"`
	AuditFields
}
