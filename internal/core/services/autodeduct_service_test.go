package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/repositories/database/memory"
)

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff{Base: 24 * time.Hour}
	require.Equal(t, 24*time.Hour, b.NextDelay(1))
	require.Equal(t, 24*time.Hour, b.NextDelay(3))
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 6 * time.Hour}
	require.Equal(t, 6*time.Hour, b.NextDelay(1))
	require.Equal(t, 12*time.Hour, b.NextDelay(2))
	require.Equal(t, 24*time.Hour, b.NextDelay(3))
}

func TestBackoffFromConfig(t *testing.T) {
	cfg := &config.Config{BackoffStrategy: config.BackoffExponential, AutoRetryBackoff: time.Hour}
	_, ok := BackoffFromConfig(cfg).(ExponentialBackoff)
	require.True(t, ok)

	cfg.BackoffStrategy = config.BackoffFixed
	_, ok = BackoffFromConfig(cfg).(FixedBackoff)
	require.True(t, ok)
}

type AutoDeductServiceTestSuite struct {
	suite.Suite
	store      *memory.Store
	repos      portsrepo.RepositoryProvider
	cfg        *config.Config
	now        time.Time
	svc        *autoDeductService
	borrowerID string
	lenderID   string
	borrowAcc  string
	lendAcc    string
}

func (s *AutoDeductServiceTestSuite) SetupTest() {
	s.store = memory.NewStore()
	s.repos = memory.NewRepositoryProvider(s.store)
	s.cfg = &config.Config{
		DefaultCurrency:     "USD",
		MaxAutoRetries:      3,
		AutoRetryBackoff:    24 * time.Hour,
		AutoDeductBatchSize: 50,
	}
	s.now = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

	escrowSvc := NewEscrowService(s.store, s.repos, s.cfg)
	s.svc = &autoDeductService{
		repos:      s.repos,
		escrowSvc:  escrowSvc,
		dispatcher: NewNotificationDispatcher(NewLogNotifier()),
		backoff:    FixedBackoff{Base: s.cfg.AutoRetryBackoff},
		cfg:        s.cfg,
		now:        func() time.Time { return s.now },
	}

	ctx := context.Background()
	s.borrowerID = s.seedUser(ctx, "borrower@example.com")
	s.lenderID = s.seedUser(ctx, "lender@example.com")
	s.borrowAcc = s.seedAccount(ctx, s.borrowerID, domain.Daily, decimal.NewFromInt(200))
	s.lendAcc = s.seedAccount(ctx, s.lenderID, domain.Daily, decimal.NewFromInt(500))
}

func (s *AutoDeductServiceTestSuite) seedUser(ctx context.Context, email string) string {
	user := domain.User{UserID: uuid.NewString(), Name: "Test User", Email: email}
	s.Require().NoError(s.repos.UserRepo.SaveUser(ctx, user))
	return user.UserID
}

func (s *AutoDeductServiceTestSuite) seedAccount(ctx context.Context, userID string, accountType domain.AccountType, balance decimal.Decimal) string {
	acc := domain.Account{
		AccountID:    uuid.NewString(),
		UserID:       userID,
		Name:         string(accountType),
		AccountType:  accountType,
		CurrencyCode: "USD",
		Balance:      balance,
		Status:       domain.StatusGreen,
		IsActive:     true,
	}
	s.Require().NoError(s.repos.LedgerRepo.SaveAccount(ctx, acc))
	return acc.AccountID
}

// seedDueLoan creates an active, disbursed auto-deduct loan with one overdue
// installment of 50 and one future installment of 50.
func (s *AutoDeductServiceTestSuite) seedDueLoan(ctx context.Context, retryCount int) string {
	dueDate := s.now.AddDate(0, 0, -1)
	loan := domain.P2PLoan{
		LoanID:          uuid.NewString(),
		BorrowerID:      s.borrowerID,
		LenderID:        s.lenderID,
		Principal:       decimal.NewFromInt(100),
		InterestRate:    decimal.Zero,
		TotalAmount:     decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(100),
		CurrencyCode:    "USD",
		RepaymentSchedule: []domain.ScheduleEntry{
			{DueDate: dueDate, Amount: decimal.NewFromInt(50)},
			{DueDate: dueDate.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
		},
		Cadence:        domain.CadenceMonthly,
		Status:         domain.LoanActive,
		EscrowStatus:   domain.EscrowDisbursed,
		AutoDeduct:     true,
		AutoRetryCount: retryCount,
	}
	refreshPaymentPointers(&loan)
	s.Require().NoError(s.repos.LoanRepo.SaveLoan(ctx, loan))
	return loan.LoanID
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_SuccessfulDeduction() {
	ctx := context.Background()
	loanID := s.seedDueLoan(ctx, 0)

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Scanned)
	s.Equal(1, summary.Attempted)
	s.Equal(1, summary.Succeeded)
	s.Equal(0, summary.InsufficientFunds)
	s.Equal(0, summary.Failed)

	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	s.Require().NoError(err)
	s.True(loan.RemainingAmount.Equal(decimal.NewFromInt(50)))
	s.True(loan.RepaymentSchedule[0].Paid)
	s.Equal(0, loan.AutoRetryCount)
	s.Nil(loan.NextAutoAttemptAt)
	s.Require().NotNil(loan.LastAutoAttemptAt)
	s.Equal(s.now, *loan.LastAutoAttemptAt)
	s.Equal("system", loan.LastUpdatedBy)

	borrowAcc, err := s.repos.LedgerRepo.FindAccountByID(ctx, s.borrowAcc)
	s.Require().NoError(err)
	s.True(borrowAcc.Balance.Equal(decimal.NewFromInt(150)))

	lendAcc, err := s.repos.LedgerRepo.FindAccountByID(ctx, s.lendAcc)
	s.Require().NoError(err)
	s.True(lendAcc.Balance.Equal(decimal.NewFromInt(550)))
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_InsufficientFundsSchedulesRetry() {
	ctx := context.Background()
	loanID := s.seedDueLoan(ctx, 0)

	// Drain the borrower's account below the installment.
	_, err := s.repos.LedgerRepo.ConditionalDecrement(ctx, s.borrowAcc, decimal.NewFromInt(195))
	s.Require().NoError(err)

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.InsufficientFunds)
	s.Equal(0, summary.Succeeded)
	s.Equal(0, summary.Failed)

	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	s.Require().NoError(err)
	s.Equal(1, loan.AutoRetryCount)
	s.Equal(domain.LoanActive, loan.Status)
	s.Require().NotNil(loan.NextAutoAttemptAt)
	s.Equal(s.now.Add(24*time.Hour), *loan.NextAutoAttemptAt)
	// The loan's balance is untouched: the failed transfer left no partial state.
	s.True(loan.RemainingAmount.Equal(decimal.NewFromInt(100)))

	borrowAcc, err := s.repos.LedgerRepo.FindAccountByID(ctx, s.borrowAcc)
	s.Require().NoError(err)
	s.True(borrowAcc.Balance.Equal(decimal.NewFromInt(5)))

	// The backoff keeps the loan out of the next batch.
	summary, err = s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(0, summary.Scanned)
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_RetryCapForcesOverdue() {
	ctx := context.Background()
	loanID := s.seedDueLoan(ctx, s.cfg.MaxAutoRetries-1)

	_, err := s.repos.LedgerRepo.ConditionalDecrement(ctx, s.borrowAcc, decimal.NewFromInt(195))
	s.Require().NoError(err)

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.InsufficientFunds)

	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	s.Require().NoError(err)
	s.Equal(s.cfg.MaxAutoRetries, loan.AutoRetryCount)
	s.Equal(domain.LoanOverdue, loan.Status)
	s.Nil(loan.NextAutoAttemptAt)

	// At the cap the loan drops out of selection entirely.
	summary, err = s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(0, summary.Scanned)
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_OneInstallmentPerBatch() {
	ctx := context.Background()
	dueDate := s.now.AddDate(0, 0, -8)
	loan := domain.P2PLoan{
		LoanID:          uuid.NewString(),
		BorrowerID:      s.borrowerID,
		LenderID:        s.lenderID,
		Principal:       decimal.NewFromInt(100),
		InterestRate:    decimal.Zero,
		TotalAmount:     decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(100),
		CurrencyCode:    "USD",
		RepaymentSchedule: []domain.ScheduleEntry{
			{DueDate: dueDate, Amount: decimal.NewFromInt(50)},
			{DueDate: dueDate.AddDate(0, 0, 7), Amount: decimal.NewFromInt(50)},
		},
		Cadence:      domain.CadenceWeekly,
		Status:       domain.LoanActive,
		EscrowStatus: domain.EscrowDisbursed,
		AutoDeduct:   true,
	}
	refreshPaymentPointers(&loan)
	s.Require().NoError(s.repos.LoanRepo.SaveLoan(ctx, loan))

	// Two installments behind: the first batch collects only the next one.
	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Succeeded)

	got, err := s.repos.LoanRepo.FindLoanByID(ctx, loan.LoanID)
	s.Require().NoError(err)
	s.True(got.RemainingAmount.Equal(decimal.NewFromInt(50)))
	s.True(got.RepaymentSchedule[0].Paid)
	s.False(got.RepaymentSchedule[1].Paid)

	borrowAcc, err := s.repos.LedgerRepo.FindAccountByID(ctx, s.borrowAcc)
	s.Require().NoError(err)
	s.True(borrowAcc.Balance.Equal(decimal.NewFromInt(150)))

	// The second batch catches up the remaining overdue installment.
	summary, err = s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Succeeded)

	got, err = s.repos.LoanRepo.FindLoanByID(ctx, loan.LoanID)
	s.Require().NoError(err)
	s.True(got.RemainingAmount.IsZero())
	s.Equal(domain.LoanRepaid, got.Status)
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_NothingDueClearsRetryState() {
	ctx := context.Background()
	// A record with stale scheduling metadata: pointers say due, but nothing is
	// owed. The batch must reset the retry state without attempting a transfer.
	pastDue := s.now.AddDate(0, 0, -1)
	pastAttempt := s.now.Add(-time.Hour)
	loan := domain.P2PLoan{
		LoanID:          uuid.NewString(),
		BorrowerID:      s.borrowerID,
		LenderID:        s.lenderID,
		Principal:       decimal.NewFromInt(100),
		TotalAmount:     decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(50),
		CurrencyCode:    "USD",
		RepaymentSchedule: []domain.ScheduleEntry{
			{DueDate: pastDue.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
		},
		Cadence:           domain.CadenceMonthly,
		Status:            domain.LoanActive,
		EscrowStatus:      domain.EscrowDisbursed,
		AutoDeduct:        true,
		AutoRetryCount:    2,
		NextAutoAttemptAt: &pastAttempt,
		NextPaymentDate:   &pastDue,
		NextPaymentAmount: decimal.Zero,
	}
	s.Require().NoError(s.repos.LoanRepo.SaveLoan(ctx, loan))

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Scanned)
	s.Equal(0, summary.Attempted)
	s.Equal(0, summary.Failed)

	got, err := s.repos.LoanRepo.FindLoanByID(ctx, loan.LoanID)
	s.Require().NoError(err)
	s.Equal(0, got.AutoRetryCount)
	s.Nil(got.NextAutoAttemptAt)
	s.Equal("system", got.LastUpdatedBy)
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_FundedLoanIsSelected() {
	ctx := context.Background()
	dueDate := s.now.AddDate(0, 0, -1)
	// Funded status can arrive from data written by systems that split approval
	// and disbursement. The scheduler still collects it.
	loan := domain.P2PLoan{
		LoanID:          uuid.NewString(),
		BorrowerID:      s.borrowerID,
		LenderID:        s.lenderID,
		Principal:       decimal.NewFromInt(100),
		TotalAmount:     decimal.NewFromInt(100),
		RemainingAmount: decimal.NewFromInt(100),
		CurrencyCode:    "USD",
		RepaymentSchedule: []domain.ScheduleEntry{
			{DueDate: dueDate, Amount: decimal.NewFromInt(50)},
			{DueDate: dueDate.AddDate(0, 1, 0), Amount: decimal.NewFromInt(50)},
		},
		Cadence:      domain.CadenceMonthly,
		Status:       domain.LoanFunded,
		EscrowStatus: domain.EscrowDisbursed,
		AutoDeduct:   true,
	}
	refreshPaymentPointers(&loan)
	s.Require().NoError(s.repos.LoanRepo.SaveLoan(ctx, loan))

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Scanned)
	s.Equal(1, summary.Succeeded)

	got, err := s.repos.LoanRepo.FindLoanByID(ctx, loan.LoanID)
	s.Require().NoError(err)
	s.Equal(domain.LoanActive, got.Status)
	s.True(got.RemainingAmount.Equal(decimal.NewFromInt(50)))
}

func (s *AutoDeductServiceTestSuite) TestRunBatch_RecoveryResetsRetryCount() {
	ctx := context.Background()
	loanID := s.seedDueLoan(ctx, 2)

	summary, err := s.svc.RunBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, summary.Succeeded)

	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	s.Require().NoError(err)
	s.Equal(0, loan.AutoRetryCount)
	s.Nil(loan.NextAutoAttemptAt)
}

func TestAutoDeductServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AutoDeductServiceTestSuite))
}
