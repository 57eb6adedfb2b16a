package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/middleware"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/utils/moneyutils"
)

// Fixed eligibility ratios. Each party may lend up to 75% of their aggregate
// balance; the suggested amount is 70% of the pair's ceiling.
var (
	lendingLimitRatio  = decimal.NewFromFloat(0.75)
	suggestedLoanRatio = decimal.NewFromFloat(0.70)
	borrowCapLookback  = 30 * 24 * time.Hour
)

// loanService drives the P2P loan state machine.
type loanService struct {
	repos     portsrepo.RepositoryProvider
	escrowSvc portssvc.EscrowSvcFacade
	cfg       *config.Config
}

// NewLoanService creates the loan lifecycle service.
func NewLoanService(repos portsrepo.RepositoryProvider, escrowSvc portssvc.EscrowSvcFacade, cfg *config.Config) portssvc.LoanSvcFacade {
	return &loanService{repos: repos, escrowSvc: escrowSvc, cfg: cfg}
}

var _ portssvc.LoanSvcFacade = (*loanService)(nil)

// ComputeEligibility implements portssvc.LoanSvcFacade. Only derived limits are
// returned; neither party's raw balances leave this method.
func (s *loanService) ComputeEligibility(ctx context.Context, borrowerID string, lenderID string) (*dto.EligibilityResponse, error) {
	if _, err := s.repos.UserRepo.FindUserByID(ctx, lenderID); err != nil {
		return nil, fmt.Errorf("lender %s: %w", lenderID, err)
	}

	borrowerTotal, err := s.repos.LedgerRepo.TotalBalance(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute borrower balance: %w", err)
	}
	lenderTotal, err := s.repos.LedgerRepo.TotalBalance(ctx, lenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute lender balance: %w", err)
	}

	borrowerLimit := moneyutils.Round2(borrowerTotal.Mul(lendingLimitRatio))
	lenderLimit := moneyutils.Round2(lenderTotal.Mul(lendingLimitRatio))
	maxBorrowable := moneyutils.Min(borrowerLimit, lenderLimit)

	return &dto.EligibilityResponse{
		MaxBorrowable:        maxBorrowable,
		SuggestedAmount:      moneyutils.Round2(maxBorrowable.Mul(suggestedLoanRatio)),
		RequiresSecondFactor: maxBorrowable.GreaterThan(s.cfg.SecondFactorThreshold),
	}, nil
}

// RequestLoan implements portssvc.LoanSvcFacade.
func (s *loanService) RequestLoan(ctx context.Context, borrowerID string, req dto.RequestLoanRequest) (*domain.P2PLoan, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	principal := moneyutils.Round2(req.Principal)
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: principal must be positive", apperrors.ErrValidation)
	}
	if req.InterestRate.LessThan(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: interest rate must not be negative", apperrors.ErrValidation)
	}
	if req.LenderID == borrowerID {
		return nil, nil, fmt.Errorf("%w: cannot borrow from yourself", apperrors.ErrValidation)
	}
	if _, err := s.repos.UserRepo.FindUserByID(ctx, req.LenderID); err != nil {
		return nil, nil, fmt.Errorf("lender %s: %w", req.LenderID, err)
	}

	now := time.Now().UTC()
	if err := s.checkRequestPolicy(ctx, borrowerID, principal, now); err != nil {
		return nil, nil, err
	}

	eligibility, err := s.ComputeEligibility(ctx, borrowerID, req.LenderID)
	if err != nil {
		return nil, nil, err
	}
	if principal.GreaterThan(eligibility.MaxBorrowable) {
		return nil, nil, fmt.Errorf("%w: principal %s exceeds the maximum borrowable %s",
			apperrors.ErrValidation, principal.StringFixed(2), eligibility.MaxBorrowable.StringFixed(2))
	}

	firstDue := req.Cadence.Advance(now)
	if req.FirstDueDate != nil {
		firstDue = req.FirstDueDate.UTC()
	}
	total, schedule := buildRepaymentSchedule(principal, req.InterestRate, req.Installments, req.Cadence, firstDue)

	loan := domain.P2PLoan{
		LoanID:             uuid.NewString(),
		BorrowerID:         borrowerID,
		LenderID:           req.LenderID,
		Principal:          principal,
		InterestRate:       req.InterestRate,
		TotalAmount:        total,
		RemainingAmount:    total,
		CurrencyCode:       s.cfg.DefaultCurrency,
		RepaymentSchedule:  schedule,
		Cadence:            req.Cadence,
		Status:             domain.LoanPendingApproval,
		EscrowStatus:       domain.EscrowNone,
		AutoDeduct:         req.AutoDeduct,
		AccountDeductionID: req.AccountDeductionID,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     borrowerID,
			LastUpdatedAt: now,
			LastUpdatedBy: borrowerID,
		},
	}
	refreshPaymentPointers(&loan)

	if err := s.repos.LoanRepo.SaveLoan(ctx, loan); err != nil {
		return nil, nil, fmt.Errorf("failed to save loan request: %w", err)
	}

	logger.Info("Loan requested",
		slog.String("loan_id", loan.LoanID), slog.String("lender_id", req.LenderID),
		slog.String("principal", principal.String()))

	events := []domain.Notification{{
		UserID:    req.LenderID,
		Type:      domain.NotifyLoanRequested,
		Title:     "New loan request",
		Message:   fmt.Sprintf("You received a loan request for %s", principal.StringFixed(2)),
		RelatedID: loan.LoanID,
		Severity:  domain.SeverityInfo,
	}}
	return &loan, events, nil
}

// checkRequestPolicy enforces the cool-off window and the rolling monthly
// principal cap before any mutation is attempted.
func (s *loanService) checkRequestPolicy(ctx context.Context, borrowerID string, principal decimal.Decimal, now time.Time) error {
	latest, err := s.repos.LoanRepo.FindLatestRequestAt(ctx, borrowerID)
	if err != nil {
		return fmt.Errorf("failed to check cool-off window: %w", err)
	}
	if latest != nil && now.Sub(*latest) < s.cfg.CoolOffWindow {
		return fmt.Errorf("%w: a new loan request is allowed after %s",
			apperrors.ErrPolicyViolation, latest.Add(s.cfg.CoolOffWindow).Format(time.RFC3339))
	}

	requested, err := s.repos.LoanRepo.SumPrincipalRequestedSince(ctx, borrowerID, now.Add(-borrowCapLookback))
	if err != nil {
		return fmt.Errorf("failed to check monthly borrow cap: %w", err)
	}
	if requested.Add(principal).GreaterThan(s.cfg.MonthlyBorrowCap) {
		return fmt.Errorf("%w: monthly borrowing cap of %s exceeded",
			apperrors.ErrPolicyViolation, s.cfg.MonthlyBorrowCap.StringFixed(2))
	}
	return nil
}

// ApproveLoan implements portssvc.LoanSvcFacade. Approval immediately holds the
// escrow and disburses the principal; the loan leaves this method active.
func (s *loanService) ApproveLoan(ctx context.Context, lenderID string, loanID string, req dto.ApproveLoanRequest) (*domain.P2PLoan, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	loan, err := s.loadLoanForParty(ctx, loanID, lenderID, partyLender)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != domain.LoanPendingApproval {
		return nil, nil, fmt.Errorf("%w: loan is %s, expected pending_approval", apperrors.ErrConflict, loan.Status)
	}

	now := time.Now().UTC()
	loan.Status = domain.LoanApproved
	loan.EmergencyApproved = req.EmergencyApproved
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = lenderID
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return nil, nil, fmt.Errorf("failed to record approval: %w", err)
	}

	if _, err := s.escrowSvc.HoldFunds(ctx, loan); err != nil {
		return nil, nil, err
	}
	if err := s.escrowSvc.Disburse(ctx, loan); err != nil {
		return nil, nil, err
	}

	logger.Info("Loan approved and disbursed", slog.String("loan_id", loan.LoanID))
	events := []domain.Notification{
		{
			UserID:    loan.BorrowerID,
			Type:      domain.NotifyLoanApproved,
			Title:     "Loan approved",
			Message:   fmt.Sprintf("Your loan request for %s was approved", loan.Principal.StringFixed(2)),
			RelatedID: loan.LoanID,
			Severity:  domain.SeverityInfo,
		},
		{
			UserID:    loan.BorrowerID,
			Type:      domain.NotifyLoanDisbursed,
			Title:     "Loan disbursed",
			Message:   fmt.Sprintf("%s has been credited to your account", loan.Principal.StringFixed(2)),
			RelatedID: loan.LoanID,
			Severity:  domain.SeverityInfo,
		},
	}
	return loan, events, nil
}

// DeclineLoan implements portssvc.LoanSvcFacade.
func (s *loanService) DeclineLoan(ctx context.Context, lenderID string, loanID string) (*domain.P2PLoan, []domain.Notification, error) {
	loan, err := s.loadLoanForParty(ctx, loanID, lenderID, partyLender)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status != domain.LoanPendingApproval {
		return nil, nil, fmt.Errorf("%w: loan is %s, expected pending_approval", apperrors.ErrConflict, loan.Status)
	}

	now := time.Now().UTC()
	loan.Status = domain.LoanDeclined
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = lenderID
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return nil, nil, fmt.Errorf("failed to record decline: %w", err)
	}

	events := []domain.Notification{{
		UserID:    loan.BorrowerID,
		Type:      domain.NotifyLoanDeclined,
		Title:     "Loan declined",
		Message:   "Your loan request was declined",
		RelatedID: loan.LoanID,
		Severity:  domain.SeverityInfo,
	}}
	return loan, events, nil
}

// Repay implements portssvc.LoanSvcFacade. The settlement transfer and the
// schedule application are shared with the auto-deduct scheduler.
func (s *loanService) Repay(ctx context.Context, borrowerID string, loanID string, req dto.RepayLoanRequest) (*domain.P2PLoan, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	loan, err := s.loadLoanForParty(ctx, loanID, borrowerID, partyBorrower)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status.IsTerminal() || loan.RemainingAmount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: loan %s has no outstanding balance", apperrors.ErrConflict, loanID)
	}
	if loan.EscrowStatus != domain.EscrowDisbursed {
		return nil, nil, fmt.Errorf("%w: loan %s has not been disbursed", apperrors.ErrConflict, loanID)
	}

	amount := moneyutils.Round2(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: repayment amount must be positive", apperrors.ErrValidation)
	}
	// Overpayments are clamped to the outstanding balance.
	amount = moneyutils.Min(amount, loan.RemainingAmount)

	if err := s.escrowSvc.SettlementTransfer(ctx, loan, amount); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	applyRepaymentToSchedule(loan, amount, now)
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = borrowerID
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return nil, nil, fmt.Errorf("failed to persist repayment: %w", err)
	}

	logger.Info("Loan repayment applied",
		slog.String("loan_id", loan.LoanID), slog.String("amount", amount.String()),
		slog.String("remaining", loan.RemainingAmount.String()))

	events := []domain.Notification{{
		UserID:    loan.LenderID,
		Type:      domain.NotifyLoanRepayment,
		Title:     "Repayment received",
		Message:   fmt.Sprintf("Repayment of %s received for your loan", amount.StringFixed(2)),
		RelatedID: loan.LoanID,
		Severity:  domain.SeverityInfo,
	}}
	if loan.Status == domain.LoanRepaid {
		events = append(events, domain.Notification{
			UserID:    loan.BorrowerID,
			Type:      domain.NotifyLoanRepaid,
			Title:     "Loan repaid",
			Message:   "Your loan is fully repaid",
			RelatedID: loan.LoanID,
			Severity:  domain.SeverityInfo,
		})
	}
	return loan, events, nil
}

// WriteOff implements portssvc.LoanSvcFacade. A held escrow is refunded to the
// lender before the loan is closed.
func (s *loanService) WriteOff(ctx context.Context, lenderID string, loanID string) (*domain.P2PLoan, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	loan, err := s.loadLoanForParty(ctx, loanID, lenderID, partyLender)
	if err != nil {
		return nil, nil, err
	}
	if loan.Status.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: loan %s is already %s", apperrors.ErrConflict, loanID, loan.Status)
	}

	if loan.EscrowStatus == domain.EscrowHeld {
		if err := s.escrowSvc.Refund(ctx, loan); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now().UTC()
	loan.Status = domain.LoanWrittenOff
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = lenderID
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return nil, nil, fmt.Errorf("failed to record write-off: %w", err)
	}

	logger.Info("Loan written off", slog.String("loan_id", loan.LoanID))
	events := []domain.Notification{{
		UserID:    loan.BorrowerID,
		Type:      domain.NotifyLoanWrittenOff,
		Title:     "Loan written off",
		Message:   "Your outstanding loan balance was written off by the lender",
		RelatedID: loan.LoanID,
		Severity:  domain.SeverityInfo,
	}}
	return loan, events, nil
}

// GetLoanByID implements portssvc.LoanSvcFacade.
func (s *loanService) GetLoanByID(ctx context.Context, userID string, loanID string) (*domain.P2PLoan, error) {
	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.BorrowerID != userID && loan.LenderID != userID {
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrForbidden, loanID)
	}
	return loan, nil
}

// ListLoans implements portssvc.LoanSvcFacade.
func (s *loanService) ListLoans(ctx context.Context, userID string, params dto.ListLoansParams) ([]dto.LoanResponse, error) {
	role := portsrepo.LoanRole(params.Role)
	if role == "" {
		role = portsrepo.RoleAny
	}
	loans, err := s.repos.LoanRepo.ListLoansByUserID(ctx, userID, role, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return dto.ToLoanResponses(loans), nil
}

type loanParty int

const (
	partyBorrower loanParty = iota
	partyLender
)

// loadLoanForParty fetches a loan and verifies the acting user is the expected
// side of the agreement.
func (s *loanService) loadLoanForParty(ctx context.Context, loanID string, userID string, party loanParty) (*domain.P2PLoan, error) {
	loan, err := s.repos.LoanRepo.FindLoanByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	switch party {
	case partyLender:
		if loan.LenderID != userID {
			return nil, fmt.Errorf("%w: only the lender may perform this action", apperrors.ErrForbidden)
		}
	case partyBorrower:
		if loan.BorrowerID != userID {
			return nil, fmt.Errorf("%w: only the borrower may perform this action", apperrors.ErrForbidden)
		}
	}
	return loan, nil
}
