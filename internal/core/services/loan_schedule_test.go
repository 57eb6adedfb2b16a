package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

func TestBuildRepaymentSchedule_EvenSplitWithInterest(t *testing.T) {
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.NewFromInt(100)
	rate := decimal.NewFromFloat(0.05)

	total, entries := buildRepaymentSchedule(principal, rate, 3, domain.CadenceWeekly, firstDue)

	require.Len(t, entries, 3)
	assert.True(t, total.Equal(decimal.NewFromFloat(105.00)), "total %s", total)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromFloat(35.00)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromFloat(35.00)))
	assert.True(t, entries[2].Amount.Equal(decimal.NewFromFloat(35.00)))

	assert.Equal(t, firstDue, entries[0].DueDate)
	assert.Equal(t, firstDue.AddDate(0, 0, 7), entries[1].DueDate)
	assert.Equal(t, firstDue.AddDate(0, 0, 14), entries[2].DueDate)
}

func TestBuildRepaymentSchedule_LastInstallmentAbsorbsRemainder(t *testing.T) {
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	total, entries := buildRepaymentSchedule(decimal.NewFromInt(100), decimal.Zero, 3, domain.CadenceMonthly, firstDue)

	require.Len(t, entries, 3)
	assert.True(t, total.Equal(decimal.NewFromInt(100)))
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromFloat(33.33)))
	assert.True(t, entries[1].Amount.Equal(decimal.NewFromFloat(33.33)))
	assert.True(t, entries[2].Amount.Equal(decimal.NewFromFloat(33.34)))

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Amount)
	}
	assert.True(t, sum.Equal(total))
}

func TestBuildRepaymentSchedule_SingleInstallment(t *testing.T) {
	firstDue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	total, entries := buildRepaymentSchedule(decimal.NewFromInt(250), decimal.NewFromFloat(0.1), 1, domain.CadenceDaily, firstDue)

	require.Len(t, entries, 1)
	assert.True(t, total.Equal(decimal.NewFromInt(275)))
	assert.True(t, entries[0].Amount.Equal(total))
	assert.Equal(t, firstDue, entries[0].DueDate)
}

func newScheduledLoan(total decimal.Decimal, entries []domain.ScheduleEntry) *domain.P2PLoan {
	loan := &domain.P2PLoan{
		TotalAmount:       total,
		RemainingAmount:   total,
		RepaymentSchedule: entries,
		Status:            domain.LoanActive,
	}
	refreshPaymentPointers(loan)
	return loan
}

func TestApplyRepaymentToSchedule_PartialInstallment(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	loan := newScheduledLoan(decimal.NewFromInt(100), []domain.ScheduleEntry{
		{DueDate: due, Amount: decimal.NewFromInt(50)},
		{DueDate: due.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
	})

	now := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	applyRepaymentToSchedule(loan, decimal.NewFromInt(20), now)

	assert.False(t, loan.RepaymentSchedule[0].Paid)
	assert.True(t, loan.RepaymentSchedule[0].Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(80)))
	require.NotNil(t, loan.NextPaymentDate)
	assert.Equal(t, due, *loan.NextPaymentDate)
	assert.True(t, loan.NextPaymentAmount.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, domain.LoanActive, loan.Status)
}

func TestApplyRepaymentToSchedule_SpansInstallments(t *testing.T) {
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	loan := newScheduledLoan(decimal.NewFromInt(100), []domain.ScheduleEntry{
		{DueDate: due, Amount: decimal.NewFromInt(50)},
		{DueDate: due.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
	})

	now := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	applyRepaymentToSchedule(loan, decimal.NewFromInt(70), now)

	assert.True(t, loan.RepaymentSchedule[0].Paid)
	require.NotNil(t, loan.RepaymentSchedule[0].PaidDate)
	assert.False(t, loan.RepaymentSchedule[1].Paid)
	assert.True(t, loan.RepaymentSchedule[1].Amount.Equal(decimal.NewFromInt(30)))
	assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(30)))
}

func TestApplyRepaymentToSchedule_FullRepaymentReachesZero(t *testing.T) {
	firstDue := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	total, entries := buildRepaymentSchedule(decimal.NewFromInt(100), decimal.Zero, 3, domain.CadenceMonthly, firstDue)
	loan := newScheduledLoan(total, entries)

	now := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	// Odd partial amounts must still converge on exactly zero.
	applyRepaymentToSchedule(loan, decimal.NewFromFloat(41.50), now)
	applyRepaymentToSchedule(loan, decimal.NewFromFloat(0.01), now)
	applyRepaymentToSchedule(loan, loan.RemainingAmount, now)

	assert.True(t, loan.RemainingAmount.IsZero())
	assert.Equal(t, domain.LoanRepaid, loan.Status)
	assert.Nil(t, loan.NextPaymentDate)
	assert.True(t, loan.NextPaymentAmount.IsZero())
	for _, e := range loan.RepaymentSchedule {
		assert.True(t, e.Paid)
	}
}

func TestApplyRepaymentToSchedule_OverdueWhenNextDuePassed(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	loan := newScheduledLoan(decimal.NewFromInt(100), []domain.ScheduleEntry{
		{DueDate: due, Amount: decimal.NewFromInt(50)},
		{DueDate: due.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
	})

	// Paying off the first installment after the second one's due date leaves
	// the loan overdue.
	now := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	applyRepaymentToSchedule(loan, decimal.NewFromInt(50), now)

	assert.Equal(t, domain.LoanOverdue, loan.Status)
	assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(50)))
}
