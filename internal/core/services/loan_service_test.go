package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/core/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/repositories/database/memory"
)

type LoanServiceTestSuite struct {
	suite.Suite
	repos      portsrepo.RepositoryProvider
	cfg        *config.Config
	container  *portssvc.ServiceContainer
	borrowerID string
	lenderID   string
	lenderFun  string
	lenderDay  string
	borrowDay  string
}

func (s *LoanServiceTestSuite) SetupTest() {
	store := memory.NewStore()
	s.repos = memory.NewRepositoryProvider(store)
	s.cfg = &config.Config{
		DefaultCurrency:       "USD",
		SecondFactorThreshold: decimal.NewFromInt(1000),
		MonthlyBorrowCap:      decimal.NewFromInt(5000),
		CoolOffWindow:         0,
		MaxAutoRetries:        3,
		AutoRetryBackoff:      24 * time.Hour,
		AutoDeductBatchSize:   50,
	}
	s.container = services.NewServiceContainer(store, s.repos, s.cfg)

	s.borrowerID = s.seedUser("borrower@example.com")
	s.lenderID = s.seedUser("lender@example.com")
	s.lenderFun = s.seedAccount(s.lenderID, domain.Fun, decimal.NewFromInt(2000))
	s.lenderDay = s.seedAccount(s.lenderID, domain.Daily, decimal.NewFromInt(2000))
	s.borrowDay = s.seedAccount(s.borrowerID, domain.Daily, decimal.NewFromInt(4000))
}

func (s *LoanServiceTestSuite) seedUser(email string) string {
	user := domain.User{UserID: uuid.NewString(), Name: "Test User", Email: email}
	s.Require().NoError(s.repos.UserRepo.SaveUser(context.Background(), user))
	return user.UserID
}

func (s *LoanServiceTestSuite) seedAccount(userID string, accountType domain.AccountType, balance decimal.Decimal) string {
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
	s.Require().NoError(s.repos.LedgerRepo.SaveAccount(context.Background(), acc))
	return acc.AccountID
}

func (s *LoanServiceTestSuite) balanceOf(accountID string) decimal.Decimal {
	acc, err := s.repos.LedgerRepo.FindAccountByID(context.Background(), accountID)
	s.Require().NoError(err)
	return acc.Balance
}

func (s *LoanServiceTestSuite) requestLoan(principal int64, installments int) *domain.P2PLoan {
	loan, events, err := s.container.Loan.RequestLoan(context.Background(), s.borrowerID, dto.RequestLoanRequest{
		LenderID:     s.lenderID,
		Principal:    decimal.NewFromInt(principal),
		Installments: installments,
		Cadence:      domain.CadenceMonthly,
	})
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(domain.NotifyLoanRequested, events[0].Type)
	s.Equal(s.lenderID, events[0].UserID)
	return loan
}

func (s *LoanServiceTestSuite) TestComputeEligibility() {
	resp, err := s.container.Loan.ComputeEligibility(context.Background(), s.borrowerID, s.lenderID)
	s.Require().NoError(err)

	// Both parties hold 4000 in total, so each side's 75% cap is 3000.
	s.True(resp.MaxBorrowable.Equal(decimal.NewFromInt(3000)), "max %s", resp.MaxBorrowable)
	s.True(resp.SuggestedAmount.Equal(decimal.NewFromInt(2100)))
	s.True(resp.RequiresSecondFactor)
}

func (s *LoanServiceTestSuite) TestComputeEligibility_LenderSideBinds() {
	// A poorer lender constrains the pair regardless of borrower wealth.
	poorLender := s.seedUser("poor@example.com")
	s.seedAccount(poorLender, domain.Daily, decimal.NewFromInt(100))

	resp, err := s.container.Loan.ComputeEligibility(context.Background(), s.borrowerID, poorLender)
	s.Require().NoError(err)
	s.True(resp.MaxBorrowable.Equal(decimal.NewFromInt(75)))
	s.False(resp.RequiresSecondFactor)
}

func (s *LoanServiceTestSuite) TestComputeEligibility_UnknownLender() {
	_, err := s.container.Loan.ComputeEligibility(context.Background(), s.borrowerID, uuid.NewString())
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *LoanServiceTestSuite) TestRequestLoan_CreatesPendingLoan() {
	loan := s.requestLoan(1000, 4)

	s.Equal(domain.LoanPendingApproval, loan.Status)
	s.Equal(domain.EscrowNone, loan.EscrowStatus)
	s.True(loan.TotalAmount.Equal(decimal.NewFromInt(1000)))
	s.True(loan.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	s.Require().Len(loan.RepaymentSchedule, 4)
	for _, entry := range loan.RepaymentSchedule {
		s.True(entry.Amount.Equal(decimal.NewFromInt(250)))
	}
	s.Require().NotNil(loan.NextPaymentDate)
	s.True(loan.NextPaymentAmount.Equal(decimal.NewFromInt(250)))

	saved, err := s.repos.LoanRepo.FindLoanByID(context.Background(), loan.LoanID)
	s.Require().NoError(err)
	s.Equal(domain.LoanPendingApproval, saved.Status)
}

func (s *LoanServiceTestSuite) TestRequestLoan_SelfLoanRejected() {
	_, _, err := s.container.Loan.RequestLoan(context.Background(), s.borrowerID, dto.RequestLoanRequest{
		LenderID:     s.borrowerID,
		Principal:    decimal.NewFromInt(100),
		Installments: 1,
		Cadence:      domain.CadenceMonthly,
	})
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *LoanServiceTestSuite) TestRequestLoan_ExceedsEligibility() {
	_, _, err := s.container.Loan.RequestLoan(context.Background(), s.borrowerID, dto.RequestLoanRequest{
		LenderID:     s.lenderID,
		Principal:    decimal.NewFromInt(3500),
		Installments: 1,
		Cadence:      domain.CadenceMonthly,
	})
	s.ErrorIs(err, apperrors.ErrValidation)
}

func (s *LoanServiceTestSuite) TestRequestLoan_CoolOffWindow() {
	s.cfg.CoolOffWindow = 72 * time.Hour
	s.requestLoan(500, 1)

	_, _, err := s.container.Loan.RequestLoan(context.Background(), s.borrowerID, dto.RequestLoanRequest{
		LenderID:     s.lenderID,
		Principal:    decimal.NewFromInt(500),
		Installments: 1,
		Cadence:      domain.CadenceMonthly,
	})
	s.ErrorIs(err, apperrors.ErrPolicyViolation)
}

func (s *LoanServiceTestSuite) TestRequestLoan_MonthlyBorrowCap() {
	s.requestLoan(3000, 1)

	// 3000 already requested this month; 2500 more would exceed the 5000 cap.
	_, _, err := s.container.Loan.RequestLoan(context.Background(), s.borrowerID, dto.RequestLoanRequest{
		LenderID:     s.lenderID,
		Principal:    decimal.NewFromInt(2500),
		Installments: 1,
		Cadence:      domain.CadenceMonthly,
	})
	s.ErrorIs(err, apperrors.ErrPolicyViolation)
}

func (s *LoanServiceTestSuite) TestApproveLoan_HoldsAndDisburses() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)

	approved, events, err := s.container.Loan.ApproveLoan(ctx, s.lenderID, loan.LoanID, dto.ApproveLoanRequest{})
	s.Require().NoError(err)
	s.Equal(domain.LoanActive, approved.Status)
	s.Equal(domain.EscrowDisbursed, approved.EscrowStatus)
	s.Require().Len(events, 2)
	s.Equal(domain.NotifyLoanApproved, events[0].Type)
	s.Equal(domain.NotifyLoanDisbursed, events[1].Type)

	// Fun carries 50%, Daily absorbs the rest of the weighted pull.
	s.True(s.balanceOf(s.lenderFun).Equal(decimal.NewFromInt(1500)))
	s.True(s.balanceOf(s.lenderDay).Equal(decimal.NewFromInt(1500)))
	s.True(s.balanceOf(s.borrowDay).Equal(decimal.NewFromInt(5000)))
}

func (s *LoanServiceTestSuite) TestApproveLoan_OnlyLender() {
	loan := s.requestLoan(1000, 2)

	_, _, err := s.container.Loan.ApproveLoan(context.Background(), s.borrowerID, loan.LoanID, dto.ApproveLoanRequest{})
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *LoanServiceTestSuite) TestApproveLoan_WrongState() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)

	_, _, err := s.container.Loan.DeclineLoan(ctx, s.lenderID, loan.LoanID)
	s.Require().NoError(err)

	_, _, err = s.container.Loan.ApproveLoan(ctx, s.lenderID, loan.LoanID, dto.ApproveLoanRequest{})
	s.ErrorIs(err, apperrors.ErrConflict)
}

func (s *LoanServiceTestSuite) TestDeclineLoan() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)

	declined, events, err := s.container.Loan.DeclineLoan(ctx, s.lenderID, loan.LoanID)
	s.Require().NoError(err)
	s.Equal(domain.LoanDeclined, declined.Status)
	s.Require().Len(events, 1)
	s.Equal(domain.NotifyLoanDeclined, events[0].Type)
	s.Equal(s.borrowerID, events[0].UserID)

	// No money moved.
	s.True(s.balanceOf(s.lenderFun).Equal(decimal.NewFromInt(2000)))
	s.True(s.balanceOf(s.borrowDay).Equal(decimal.NewFromInt(4000)))
}

func (s *LoanServiceTestSuite) TestRepay_PartialThenFull() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)
	_, _, err := s.container.Loan.ApproveLoan(ctx, s.lenderID, loan.LoanID, dto.ApproveLoanRequest{})
	s.Require().NoError(err)

	repaid, events, err := s.container.Loan.Repay(ctx, s.borrowerID, loan.LoanID, dto.RepayLoanRequest{
		Amount: decimal.NewFromInt(500),
	})
	s.Require().NoError(err)
	s.True(repaid.RemainingAmount.Equal(decimal.NewFromInt(500)))
	s.True(repaid.RepaymentSchedule[0].Paid)
	s.Require().Len(events, 1)
	s.Equal(domain.NotifyLoanRepayment, events[0].Type)
	s.Equal(s.lenderID, events[0].UserID)

	// Overpayment is clamped to the outstanding balance.
	repaid, events, err = s.container.Loan.Repay(ctx, s.borrowerID, loan.LoanID, dto.RepayLoanRequest{
		Amount: decimal.NewFromInt(900),
	})
	s.Require().NoError(err)
	s.True(repaid.RemainingAmount.IsZero())
	s.Equal(domain.LoanRepaid, repaid.Status)
	s.Require().Len(events, 2)
	s.Equal(domain.NotifyLoanRepaid, events[1].Type)

	// Borrower paid exactly 1000 across both repayments.
	s.True(s.balanceOf(s.borrowDay).Equal(decimal.NewFromInt(4000)))

	// A repaid loan accepts no further repayments.
	_, _, err = s.container.Loan.Repay(ctx, s.borrowerID, loan.LoanID, dto.RepayLoanRequest{
		Amount: decimal.NewFromInt(1),
	})
	s.ErrorIs(err, apperrors.ErrConflict)
}

func (s *LoanServiceTestSuite) TestRepay_OnlyBorrower() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)
	_, _, err := s.container.Loan.ApproveLoan(ctx, s.lenderID, loan.LoanID, dto.ApproveLoanRequest{})
	s.Require().NoError(err)

	_, _, err = s.container.Loan.Repay(ctx, s.lenderID, loan.LoanID, dto.RepayLoanRequest{
		Amount: decimal.NewFromInt(100),
	})
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *LoanServiceTestSuite) TestRepay_BeforeDisbursement() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)

	_, _, err := s.container.Loan.Repay(ctx, s.borrowerID, loan.LoanID, dto.RepayLoanRequest{
		Amount: decimal.NewFromInt(100),
	})
	s.ErrorIs(err, apperrors.ErrConflict)
}

func (s *LoanServiceTestSuite) TestWriteOff_ForgivesActiveLoan() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)
	_, _, err := s.container.Loan.ApproveLoan(ctx, s.lenderID, loan.LoanID, dto.ApproveLoanRequest{})
	s.Require().NoError(err)

	written, events, err := s.container.Loan.WriteOff(ctx, s.lenderID, loan.LoanID)
	s.Require().NoError(err)
	s.Equal(domain.LoanWrittenOff, written.Status)
	s.Require().Len(events, 1)
	s.Equal(domain.NotifyLoanWrittenOff, events[0].Type)

	_, _, err = s.container.Loan.WriteOff(ctx, s.lenderID, loan.LoanID)
	s.ErrorIs(err, apperrors.ErrConflict)
}

func (s *LoanServiceTestSuite) TestGetLoanByID_ParticipantsOnly() {
	ctx := context.Background()
	loan := s.requestLoan(1000, 2)

	_, err := s.container.Loan.GetLoanByID(ctx, s.borrowerID, loan.LoanID)
	s.Require().NoError(err)
	_, err = s.container.Loan.GetLoanByID(ctx, s.lenderID, loan.LoanID)
	s.Require().NoError(err)

	stranger := s.seedUser("stranger@example.com")
	_, err = s.container.Loan.GetLoanByID(ctx, stranger, loan.LoanID)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *LoanServiceTestSuite) TestListLoans_RoleFilter() {
	ctx := context.Background()
	s.requestLoan(1000, 2)

	asBorrower, err := s.container.Loan.ListLoans(ctx, s.borrowerID, dto.ListLoansParams{Role: "borrower", Limit: 10})
	s.Require().NoError(err)
	s.Len(asBorrower, 1)

	asLender, err := s.container.Loan.ListLoans(ctx, s.borrowerID, dto.ListLoansParams{Role: "lender", Limit: 10})
	s.Require().NoError(err)
	s.Empty(asLender)

	lenderView, err := s.container.Loan.ListLoans(ctx, s.lenderID, dto.ListLoansParams{Role: "any", Limit: 10})
	s.Require().NoError(err)
	s.Len(lenderView, 1)
}

func TestLoanServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LoanServiceTestSuite))
}
