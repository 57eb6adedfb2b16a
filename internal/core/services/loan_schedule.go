package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	"github.com/stashpal/stashpal_backend/internal/utils/moneyutils"
)

// buildRepaymentSchedule constructs the installment plan for a loan.
// totalAmount = principal * (1 + interestRate), rounded to 2dp. Installments
// divide the total evenly; due dates advance by the cadence; any rounding
// remainder lands on the last installment so the schedule sums exactly to the
// rounded total.
func buildRepaymentSchedule(principal, interestRate decimal.Decimal, installments int, cadence domain.RepaymentCadence, firstDue time.Time) (decimal.Decimal, []domain.ScheduleEntry) {
	total := moneyutils.Round2(principal.Mul(decimal.NewFromInt(1).Add(interestRate)))

	if installments <= 1 {
		return total, []domain.ScheduleEntry{{DueDate: firstDue, Amount: total}}
	}

	per := moneyutils.Round2(total.Div(decimal.NewFromInt(int64(installments))))
	entries := make([]domain.ScheduleEntry, installments)
	due := firstDue
	assigned := decimal.Zero
	for i := 0; i < installments; i++ {
		amount := per
		if i == installments-1 {
			amount = total.Sub(assigned)
		}
		entries[i] = domain.ScheduleEntry{DueDate: due, Amount: amount}
		assigned = assigned.Add(amount)
		due = cadence.Advance(due)
	}
	return total, entries
}

// applyRepaymentToSchedule applies a paid amount to the earliest unpaid
// installments in order. Fully satisfied installments are marked paid with a
// timestamp; a partially satisfied installment has its remaining amount reduced
// in place and stays unpaid. RemainingAmount, the next-payment pointers and the
// loan status are recomputed afterwards. Shared by manual repayment and the
// auto-deduct scheduler; repeated partial applications summing to totalAmount
// always drive remainingAmount to exactly zero.
func applyRepaymentToSchedule(loan *domain.P2PLoan, paid decimal.Decimal, now time.Time) {
	remaining := moneyutils.Round2(paid)
	for i := range loan.RepaymentSchedule {
		entry := &loan.RepaymentSchedule[i]
		if entry.Paid {
			continue
		}
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		if remaining.GreaterThanOrEqual(entry.Amount) {
			remaining = remaining.Sub(entry.Amount)
			entry.Paid = true
			paidAt := now
			entry.PaidDate = &paidAt
		} else {
			entry.Amount = entry.Amount.Sub(remaining)
			remaining = decimal.Zero
		}
	}

	outstanding := decimal.Zero
	for _, entry := range loan.RepaymentSchedule {
		if !entry.Paid {
			outstanding = outstanding.Add(entry.Amount)
		}
	}
	loan.RemainingAmount = outstanding

	refreshPaymentPointers(loan)
	deriveWorkingStatus(loan, now)
}

// refreshPaymentPointers sets NextPaymentDate/NextPaymentAmount from the first
// remaining unpaid installment, clearing them when none remains.
func refreshPaymentPointers(loan *domain.P2PLoan) {
	for i := range loan.RepaymentSchedule {
		if !loan.RepaymentSchedule[i].Paid {
			due := loan.RepaymentSchedule[i].DueDate
			loan.NextPaymentDate = &due
			loan.NextPaymentAmount = loan.RepaymentSchedule[i].Amount
			return
		}
	}
	loan.NextPaymentDate = nil
	loan.NextPaymentAmount = decimal.Zero
}

// deriveWorkingStatus recomputes the loan status after a repayment: repaid when
// nothing remains, overdue when the next due date has passed, otherwise
// approved/funded/overdue loans are promoted to active.
func deriveWorkingStatus(loan *domain.P2PLoan, now time.Time) {
	if loan.RemainingAmount.IsZero() {
		loan.Status = domain.LoanRepaid
		return
	}
	if loan.NextPaymentDate != nil && loan.NextPaymentDate.Before(now) {
		loan.Status = domain.LoanOverdue
		return
	}
	switch loan.Status {
	case domain.LoanApproved, domain.LoanFunded, domain.LoanOverdue:
		loan.Status = domain.LoanActive
	}
}
