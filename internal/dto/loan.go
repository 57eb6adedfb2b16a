package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// RequestLoanRequest defines a borrower's loan request to a lender.
type RequestLoanRequest struct {
	LenderID           string                  `json:"lenderID" binding:"required"`
	Principal          decimal.Decimal         `json:"principal" binding:"required,dpositive"`
	InterestRate       decimal.Decimal         `json:"interestRate"` // fraction, e.g. 0.05
	Installments       int                     `json:"installments" binding:"required,min=1"`
	Cadence            domain.RepaymentCadence `json:"cadence" binding:"required,oneof=daily weekly biweekly monthly"`
	AutoDeduct         bool                    `json:"autoDeduct"`
	AccountDeductionID string                  `json:"accountDeductionID"`
	FirstDueDate       *time.Time              `json:"firstDueDate"`
}

// ApproveLoanRequest carries the lender's approval options.
type ApproveLoanRequest struct {
	EmergencyApproved bool `json:"emergencyApproved"` // allow drawing from Emergency/LongTerm accounts
}

// RepayLoanRequest defines a manual repayment.
type RepayLoanRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,dpositive"`
}

// EligibilityResponse exposes derived lending limits for a borrower-lender
// pair. Raw balances are never included.
type EligibilityResponse struct {
	MaxBorrowable        decimal.Decimal `json:"maxBorrowable"`
	SuggestedAmount      decimal.Decimal `json:"suggestedAmount"`
	RequiresSecondFactor bool            `json:"requiresSecondFactor"`
}

// ScheduleEntryResponse mirrors one repayment installment.
type ScheduleEntryResponse struct {
	DueDate  time.Time       `json:"dueDate"`
	Amount   decimal.Decimal `json:"amount"`
	Paid     bool            `json:"paid"`
	PaidDate *time.Time      `json:"paidDate,omitempty"`
}

// LoanResponse defines the data returned for a loan.
type LoanResponse struct {
	LoanID            string                  `json:"loanID"`
	BorrowerID        string                  `json:"borrowerID"`
	LenderID          string                  `json:"lenderID"`
	Principal         decimal.Decimal         `json:"principal"`
	InterestRate      decimal.Decimal         `json:"interestRate"`
	TotalAmount       decimal.Decimal         `json:"totalAmount"`
	RemainingAmount   decimal.Decimal         `json:"remainingAmount"`
	CurrencyCode      string                  `json:"currencyCode"`
	Status            domain.LoanStatus       `json:"status"`
	EscrowStatus      domain.EscrowStatus     `json:"escrowStatus"`
	AutoDeduct        bool                    `json:"autoDeduct"`
	AutoRetryCount    int                     `json:"autoRetryCount"`
	NextAutoAttemptAt *time.Time              `json:"nextAutoAttemptAt,omitempty"`
	NextPaymentDate   *time.Time              `json:"nextPaymentDate,omitempty"`
	NextPaymentAmount decimal.Decimal         `json:"nextPaymentAmount"`
	Cadence           domain.RepaymentCadence `json:"cadence"`
	Schedule          []ScheduleEntryResponse `json:"schedule"`
	CreatedAt         time.Time               `json:"createdAt"`
	LastUpdatedAt     time.Time               `json:"lastUpdatedAt"`
}

// ToLoanResponse converts a domain.P2PLoan to its response DTO.
func ToLoanResponse(loan *domain.P2PLoan) LoanResponse {
	schedule := make([]ScheduleEntryResponse, len(loan.RepaymentSchedule))
	for i, e := range loan.RepaymentSchedule {
		schedule[i] = ScheduleEntryResponse{
			DueDate:  e.DueDate,
			Amount:   e.Amount,
			Paid:     e.Paid,
			PaidDate: e.PaidDate,
		}
	}
	return LoanResponse{
		LoanID:            loan.LoanID,
		BorrowerID:        loan.BorrowerID,
		LenderID:          loan.LenderID,
		Principal:         loan.Principal,
		InterestRate:      loan.InterestRate,
		TotalAmount:       loan.TotalAmount,
		RemainingAmount:   loan.RemainingAmount,
		CurrencyCode:      loan.CurrencyCode,
		Status:            loan.Status,
		EscrowStatus:      loan.EscrowStatus,
		AutoDeduct:        loan.AutoDeduct,
		AutoRetryCount:    loan.AutoRetryCount,
		NextAutoAttemptAt: loan.NextAutoAttemptAt,
		NextPaymentDate:   loan.NextPaymentDate,
		NextPaymentAmount: loan.NextPaymentAmount,
		Cadence:           loan.Cadence,
		Schedule:          schedule,
		CreatedAt:         loan.CreatedAt,
		LastUpdatedAt:     loan.LastUpdatedAt,
	}
}

// ToLoanResponses converts a slice of loans.
func ToLoanResponses(loans []domain.P2PLoan) []LoanResponse {
	res := make([]LoanResponse, len(loans))
	for i := range loans {
		res[i] = ToLoanResponse(&loans[i])
	}
	return res
}

// ListLoansParams defines query parameters for listing loans.
type ListLoansParams struct {
	Role   string `form:"role,default=any" binding:"omitempty,oneof=borrower lender any"`
	Limit  int    `form:"limit,default=20"`
	Offset int    `form:"offset,default=0"`
}

// LoanErrorEntry reports one per-loan failure from a scheduler batch.
type LoanErrorEntry struct {
	LoanID string `json:"loanID"`
	Error  string `json:"error"`
}

// AutoDeductSummary is the observability summary returned by one scheduler
// batch run.
type AutoDeductSummary struct {
	Scanned           int              `json:"scanned"`
	Attempted         int              `json:"attempted"`
	Succeeded         int              `json:"succeeded"`
	InsufficientFunds int              `json:"insufficientFunds"`
	Failed            int              `json:"failed"`
	Errors            []LoanErrorEntry `json:"errors,omitempty"`
}
