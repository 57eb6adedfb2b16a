package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/middleware"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/platform/metrics"
	"github.com/stashpal/stashpal_backend/internal/utils/moneyutils"
)

// BackoffPolicy computes the delay before the next automatic deduction attempt
// based on how many consecutive attempts have already failed.
type BackoffPolicy interface {
	NextDelay(retryCount int) time.Duration
}

// FixedBackoff waits the same base delay after every failed attempt.
type FixedBackoff struct {
	Base time.Duration
}

func (b FixedBackoff) NextDelay(int) time.Duration {
	return b.Base
}

// ExponentialBackoff doubles the base delay per consecutive failure.
type ExponentialBackoff struct {
	Base time.Duration
}

func (b ExponentialBackoff) NextDelay(retryCount int) time.Duration {
	d := b.Base
	for i := 1; i < retryCount; i++ {
		d *= 2
	}
	return d
}

// BackoffFromConfig resolves the configured backoff strategy.
func BackoffFromConfig(cfg *config.Config) BackoffPolicy {
	if cfg.BackoffStrategy == config.BackoffExponential {
		return ExponentialBackoff{Base: cfg.AutoRetryBackoff}
	}
	return FixedBackoff{Base: cfg.AutoRetryBackoff}
}

// autoDeductService processes due auto-deduct loans in batches. Each loan is
// attempted independently; one failure never aborts the batch.
type autoDeductService struct {
	repos      portsrepo.RepositoryProvider
	escrowSvc  portssvc.EscrowSvcFacade
	dispatcher portssvc.NotificationDispatcher
	backoff    BackoffPolicy
	cfg        *config.Config
	now        func() time.Time
}

// NewAutoDeductService creates the scheduler batch service.
func NewAutoDeductService(repos portsrepo.RepositoryProvider, escrowSvc portssvc.EscrowSvcFacade, dispatcher portssvc.NotificationDispatcher, backoff BackoffPolicy, cfg *config.Config) portssvc.AutoDeductSvcFacade {
	return &autoDeductService{
		repos:      repos,
		escrowSvc:  escrowSvc,
		dispatcher: dispatcher,
		backoff:    backoff,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ portssvc.AutoDeductSvcFacade = (*autoDeductService)(nil)

// RunBatch implements portssvc.AutoDeductSvcFacade.
func (s *autoDeductService) RunBatch(ctx context.Context) (*dto.AutoDeductSummary, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	started := s.now()
	defer func() {
		metrics.AutoDeductBatchDuration.Observe(time.Since(started).Seconds())
	}()
	metrics.AutoDeductBatchesTotal.Inc()

	loans, err := s.repos.LoanRepo.FindAutoDeductDue(ctx, started, s.cfg.MaxAutoRetries, s.cfg.AutoDeductBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to select due loans: %w", err)
	}

	summary := &dto.AutoDeductSummary{Scanned: len(loans)}
	for i := range loans {
		loan := &loans[i]
		due := s.amountDue(loan, started)
		if due.LessThanOrEqual(decimal.Zero) {
			if err := s.clearRetryState(ctx, loan); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, dto.LoanErrorEntry{LoanID: loan.LoanID, Error: err.Error()})
			}
			continue
		}
		summary.Attempted++

		switch err := s.attempt(ctx, loan, due); {
		case err == nil:
			summary.Succeeded++
			metrics.AutoDeductAttemptsTotal.WithLabelValues("success").Inc()
		case errors.Is(err, apperrors.ErrInsufficientFunds):
			summary.InsufficientFunds++
			metrics.AutoDeductAttemptsTotal.WithLabelValues("insufficient_funds").Inc()
			if err := s.recordShortfall(ctx, loan); err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, dto.LoanErrorEntry{LoanID: loan.LoanID, Error: err.Error()})
			}
		default:
			summary.Failed++
			metrics.AutoDeductAttemptsTotal.WithLabelValues("error").Inc()
			summary.Errors = append(summary.Errors, dto.LoanErrorEntry{LoanID: loan.LoanID, Error: err.Error()})
			logger.Error("Auto-deduct attempt failed",
				slog.String("loan_id", loan.LoanID), slog.String("error", err.Error()))
		}
	}

	logger.Info("Auto-deduct batch finished",
		slog.Int("scanned", summary.Scanned), slog.Int("attempted", summary.Attempted),
		slog.Int("succeeded", summary.Succeeded), slog.Int("insufficient_funds", summary.InsufficientFunds),
		slog.Int("failed", summary.Failed))
	return summary, nil
}

// amountDue returns the next installment amount when it is due, clamped to the
// outstanding balance. One attempt covers one installment; a loan that is
// several installments behind catches up over consecutive batches rather than
// with a single oversized debit.
func (s *autoDeductService) amountDue(loan *domain.P2PLoan, now time.Time) decimal.Decimal {
	if loan.NextPaymentDate == nil || loan.NextPaymentDate.After(now) {
		return decimal.Zero
	}
	return moneyutils.Min(loan.NextPaymentAmount, loan.RemainingAmount)
}

// clearRetryState resets stale retry metadata on a loan that turned out to
// have nothing due, typically after a manual repayment covered the overdue
// installment. A loan with no retry state is left untouched.
func (s *autoDeductService) clearRetryState(ctx context.Context, loan *domain.P2PLoan) error {
	if loan.AutoRetryCount == 0 && loan.NextAutoAttemptAt == nil {
		return nil
	}
	now := s.now()
	loan.AutoRetryCount = 0
	loan.NextAutoAttemptAt = nil
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = "system"
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return fmt.Errorf("failed to clear retry state: %w", err)
	}
	return nil
}

// attempt runs one deduction: the settlement transfer, then the schedule and
// retry-state update. A successful attempt resets the retry counter.
func (s *autoDeductService) attempt(ctx context.Context, loan *domain.P2PLoan, amount decimal.Decimal) error {
	if err := s.escrowSvc.SettlementTransfer(ctx, loan, amount); err != nil {
		return err
	}

	now := s.now()
	applyRepaymentToSchedule(loan, amount, now)
	loan.AutoRetryCount = 0
	loan.NextAutoAttemptAt = nil
	loan.LastAutoAttemptAt = &now
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = "system"
	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return fmt.Errorf("failed to persist deduction: %w", err)
	}

	events := []domain.Notification{{
		UserID:    loan.LenderID,
		Type:      domain.NotifyLoanRepayment,
		Title:     "Automatic repayment received",
		Message:   fmt.Sprintf("Automatic repayment of %s received for your loan", amount.StringFixed(2)),
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
	s.dispatcher.Dispatch(ctx, events)
	return nil
}

// recordShortfall advances the retry state after an insufficient-funds attempt.
// At the retry cap the loan is forced overdue and drops out of the selection.
func (s *autoDeductService) recordShortfall(ctx context.Context, loan *domain.P2PLoan) error {
	now := s.now()
	loan.AutoRetryCount++
	loan.LastAutoAttemptAt = &now
	loan.LastUpdatedAt = now
	loan.LastUpdatedBy = "system"

	severity := domain.SeverityWarning
	message := fmt.Sprintf("Automatic repayment could not be collected (attempt %d of %d)",
		loan.AutoRetryCount, s.cfg.MaxAutoRetries)
	if loan.AutoRetryCount >= s.cfg.MaxAutoRetries {
		loan.Status = domain.LoanOverdue
		loan.NextAutoAttemptAt = nil
		severity = domain.SeverityCritical
		message = "Automatic repayment failed repeatedly; your loan is now overdue"
	} else {
		next := now.Add(s.backoff.NextDelay(loan.AutoRetryCount))
		loan.NextAutoAttemptAt = &next
	}

	if err := s.repos.LoanRepo.UpdateLoan(ctx, *loan); err != nil {
		return fmt.Errorf("failed to persist retry state: %w", err)
	}

	s.dispatcher.Dispatch(ctx, []domain.Notification{{
		UserID:    loan.BorrowerID,
		Type:      domain.NotifyLoanOverdue,
		Title:     "Automatic repayment failed",
		Message:   message,
		RelatedID: loan.LoanID,
		Severity:  severity,
	}})
	return nil
}
