package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/middleware"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/platform/metrics"
	"github.com/stashpal/stashpal_backend/internal/utils/moneyutils"
	"github.com/stashpal/stashpal_backend/internal/utils/txcode"
)

// Fixed source-priority weights for escrow holds. Emergency and LongTerm are
// excluded from the weighted pull; they participate only in the greedy top-up
// and only when the lender explicitly approved an emergency draw.
var pullWeights = []struct {
	accountType domain.AccountType
	weight      int64
}{
	{domain.Fun, 50},
	{domain.Charity, 30},
	{domain.Daily, 20},
}

// escrowService performs atomic multi-account money movements between two
// users. Each public operation is exactly one storage transaction: a failure
// at any step rolls back every prior mutation of that attempt.
type escrowService struct {
	txManager portsrepo.TransactionManager
	repos     portsrepo.RepositoryProvider
	cfg       *config.Config
}

// NewEscrowService creates the escrow settlement service.
func NewEscrowService(txManager portsrepo.TransactionManager, repos portsrepo.RepositoryProvider, cfg *config.Config) portssvc.EscrowSvcFacade {
	return &escrowService{txManager: txManager, repos: repos, cfg: cfg}
}

var _ portssvc.EscrowSvcFacade = (*escrowService)(nil)

// ComputePullPlan implements portssvc.EscrowSvcFacade.
func (s *escrowService) ComputePullPlan(ctx context.Context, lenderID string, total decimal.Decimal, includeProtected bool) (*domain.PullPlan, error) {
	accounts, err := s.repos.LedgerRepo.FindAccountsByUserID(ctx, lenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load lender accounts: %w", err)
	}
	return computePullPlan(accounts, moneyutils.Round2(total), includeProtected), nil
}

// computePullPlan distributes total across the weighted accounts, floor-to-cent
// with the last present entry absorbing rounding drift, clamps each share to
// availability, then greedily tops up any remaining shortfall in priority
// order.
func computePullPlan(accounts []domain.Account, total decimal.Decimal, includeProtected bool) *domain.PullPlan {
	byType := make(map[domain.AccountType]*domain.Account)
	for i := range accounts {
		if _, seen := byType[accounts[i].AccountType]; !seen {
			byType[accounts[i].AccountType] = &accounts[i]
		}
	}

	type planned struct {
		acc    *domain.Account
		amount decimal.Decimal
	}
	var plan []planned

	// Weighted targets over the accounts the lender actually has.
	present := make([]struct {
		acc    *domain.Account
		weight int64
	}, 0, len(pullWeights))
	for _, w := range pullWeights {
		if acc, ok := byType[w.accountType]; ok {
			present = append(present, struct {
				acc    *domain.Account
				weight int64
			}{acc, w.weight})
		}
	}

	hundred := decimal.NewFromInt(100)
	assigned := decimal.Zero
	for i, p := range present {
		var target decimal.Decimal
		if i == len(present)-1 {
			target = total.Sub(assigned) // last entry absorbs rounding drift
		} else {
			target = moneyutils.FloorCents(total.Mul(decimal.NewFromInt(p.weight)).Div(hundred))
		}
		assigned = assigned.Add(target)
		plan = append(plan, planned{acc: p.acc, amount: moneyutils.Min(target, p.acc.Balance)})
	}

	// Greedy top-up from the same accounts, then the protected ones when an
	// emergency draw was approved.
	topUpOrder := make([]*domain.Account, 0, len(plan)+2)
	for i := range plan {
		topUpOrder = append(topUpOrder, plan[i].acc)
	}
	if includeProtected {
		for _, t := range []domain.AccountType{domain.Emergency, domain.LongTerm} {
			if acc, ok := byType[t]; ok {
				plan = append(plan, planned{acc: acc, amount: decimal.Zero})
				topUpOrder = append(topUpOrder, acc)
			}
		}
	}

	plannedByID := make(map[string]int, len(plan))
	for i := range plan {
		plannedByID[plan[i].acc.AccountID] = i
	}

	planTotal := decimal.Zero
	for _, p := range plan {
		planTotal = planTotal.Add(p.amount)
	}
	shortfall := total.Sub(planTotal)
	for _, acc := range topUpOrder {
		if shortfall.LessThanOrEqual(decimal.Zero) {
			break
		}
		i := plannedByID[acc.AccountID]
		headroom := acc.Balance.Sub(plan[i].amount)
		if headroom.LessThanOrEqual(decimal.Zero) {
			continue
		}
		extra := moneyutils.Min(shortfall, headroom)
		plan[i].amount = plan[i].amount.Add(extra)
		shortfall = shortfall.Sub(extra)
	}

	result := &domain.PullPlan{TotalAvailable: decimal.Zero}
	for _, p := range plan {
		result.TotalAvailable = result.TotalAvailable.Add(p.acc.Balance)
		if p.amount.GreaterThan(decimal.Zero) {
			result.Entries = append(result.Entries, domain.PullPlanEntry{
				AccountID:   p.acc.AccountID,
				AccountType: p.acc.AccountType,
				Amount:      p.amount,
			})
		}
	}
	return result
}

// HoldFunds implements portssvc.EscrowSvcFacade.
func (s *escrowService) HoldFunds(ctx context.Context, loan *domain.P2PLoan) (*domain.Escrow, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if _, err := s.repos.EscrowRepo.FindHeldEscrowByLoanID(ctx, loan.LoanID); err == nil {
		return nil, fmt.Errorf("%w: loan %s already has a held escrow", apperrors.ErrConflict, loan.LoanID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing escrow: %w", err)
	}

	principal := moneyutils.Round2(loan.Principal)
	plan, err := s.ComputePullPlan(ctx, loan.LenderID, principal, loan.EmergencyApproved)
	if err != nil {
		return nil, err
	}
	if plan.Total().LessThan(principal) {
		metrics.SettlementsTotal.WithLabelValues("hold", "insufficient_capacity").Inc()
		return nil, &apperrors.InsufficientCapacityError{
			TotalAvailable: plan.TotalAvailable,
			Required:       principal,
			Allowed:        plan.Total(),
		}
	}

	now := time.Now().UTC()
	escrow := domain.Escrow{
		EscrowID:   uuid.NewString(),
		LoanID:     loan.LoanID,
		LenderID:   loan.LenderID,
		AmountHeld: principal,
		HoldStatus: domain.HoldHeld,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     loan.LenderID,
			LastUpdatedAt: now,
			LastUpdatedBy: loan.LenderID,
		},
	}

	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		for _, entry := range plan.Entries {
			if _, err := repos.LedgerRepo.ConditionalDecrement(ctx, entry.AccountID, entry.Amount); err != nil {
				return fmt.Errorf("escrow hold decrement on account %s: %w", entry.AccountID, err)
			}
		}
		balanceAfter, err := repos.LedgerRepo.TotalBalance(ctx, loan.LenderID)
		if err != nil {
			return err
		}
		for _, entry := range plan.Entries {
			if _, err := writeLedgerTransaction(ctx, repos.LedgerRepo, loan.LenderID, entry.Amount, domain.Expense,
				fmt.Sprintf("Escrow hold from %s account for loan %s", entry.AccountType, loan.LoanID), loan.CurrencyCode,
				[]domain.Allocation{{AccountID: entry.AccountID, Amount: entry.Amount}}, balanceAfter); err != nil {
				return err
			}
		}
		if err := repos.EscrowRepo.SaveEscrow(ctx, escrow); err != nil {
			return err
		}
		loan.EscrowID = escrow.EscrowID
		loan.EscrowStatus = domain.EscrowHeld
		loan.Status = domain.LoanFunded
		loan.LastUpdatedAt = now
		loan.LastUpdatedBy = loan.LenderID
		return repos.LoanRepo.UpdateLoan(ctx, *loan)
	})
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("hold", "failed").Inc()
		return nil, err
	}

	metrics.SettlementsTotal.WithLabelValues("hold", "succeeded").Inc()
	logger.Info("Escrow hold placed",
		slog.String("loan_id", loan.LoanID), slog.String("escrow_id", escrow.EscrowID),
		slog.String("amount", principal.String()))
	return &escrow, nil
}

// Disburse implements portssvc.EscrowSvcFacade.
func (s *escrowService) Disburse(ctx context.Context, loan *domain.P2PLoan) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	escrow, err := s.repos.EscrowRepo.FindEscrowByID(ctx, loan.EscrowID)
	if err != nil {
		return fmt.Errorf("failed to load escrow for disbursement: %w", err)
	}
	if escrow.HoldStatus != domain.HoldHeld {
		return fmt.Errorf("%w: escrow %s is %s, expected held", apperrors.ErrConflict, escrow.EscrowID, escrow.HoldStatus)
	}

	now := time.Now().UTC()
	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		accounts, err := repos.LedgerRepo.FindAccountsByUserID(ctx, loan.BorrowerID)
		if err != nil {
			return err
		}
		target, err := resolveCreditAccount(accounts)
		if err != nil {
			return err
		}
		if _, err := repos.LedgerRepo.Increment(ctx, target.AccountID, escrow.AmountHeld); err != nil {
			return err
		}
		balanceAfter, err := repos.LedgerRepo.TotalBalance(ctx, loan.BorrowerID)
		if err != nil {
			return err
		}
		txn, err := writeLedgerTransaction(ctx, repos.LedgerRepo, loan.BorrowerID, escrow.AmountHeld, domain.Income,
			fmt.Sprintf("Loan disbursement for loan %s", loan.LoanID), loan.CurrencyCode,
			[]domain.Allocation{{AccountID: target.AccountID, Amount: escrow.AmountHeld}}, balanceAfter)
		if err != nil {
			return err
		}

		escrow.HoldStatus = domain.HoldReleased
		escrow.DisbursementTxID = txn.TransactionID
		escrow.LastUpdatedAt = now
		escrow.LastUpdatedBy = loan.LenderID
		if err := repos.EscrowRepo.UpdateEscrow(ctx, *escrow); err != nil {
			return err
		}

		loan.EscrowStatus = domain.EscrowDisbursed
		loan.Status = domain.LoanActive
		refreshPaymentPointers(loan)
		loan.LastUpdatedAt = now
		loan.LastUpdatedBy = loan.LenderID
		return repos.LoanRepo.UpdateLoan(ctx, *loan)
	})
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("disburse", "failed").Inc()
		return err
	}

	metrics.SettlementsTotal.WithLabelValues("disburse", "succeeded").Inc()
	logger.Info("Loan disbursed", slog.String("loan_id", loan.LoanID), slog.String("escrow_id", escrow.EscrowID))
	return nil
}

// SettlementTransfer implements portssvc.EscrowSvcFacade.
func (s *escrowService) SettlementTransfer(ctx context.Context, loan *domain.P2PLoan, amount decimal.Decimal) error {
	amount = moneyutils.Round2(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: settlement amount must be positive", apperrors.ErrValidation)
	}

	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		borrowerAccounts, err := repos.LedgerRepo.FindAccountsByUserID(ctx, loan.BorrowerID)
		if err != nil {
			return err
		}
		source, err := resolveDeductionAccount(borrowerAccounts, loan.AccountDeductionID)
		if err != nil {
			return err
		}
		if _, err := repos.LedgerRepo.ConditionalDecrement(ctx, source.AccountID, amount); err != nil {
			return err
		}

		lenderAccounts, err := repos.LedgerRepo.FindAccountsByUserID(ctx, loan.LenderID)
		if err != nil {
			return err
		}
		target, err := resolveCreditAccount(lenderAccounts)
		if err != nil {
			return err
		}
		if _, err := repos.LedgerRepo.Increment(ctx, target.AccountID, amount); err != nil {
			return err
		}

		borrowerBalance, err := repos.LedgerRepo.TotalBalance(ctx, loan.BorrowerID)
		if err != nil {
			return err
		}
		if _, err := writeLedgerTransaction(ctx, repos.LedgerRepo, loan.BorrowerID, amount, domain.Expense,
			fmt.Sprintf("Loan repayment for loan %s", loan.LoanID), loan.CurrencyCode,
			[]domain.Allocation{{AccountID: source.AccountID, Amount: amount}}, borrowerBalance); err != nil {
			return err
		}
		lenderBalance, err := repos.LedgerRepo.TotalBalance(ctx, loan.LenderID)
		if err != nil {
			return err
		}
		if _, err := writeLedgerTransaction(ctx, repos.LedgerRepo, loan.LenderID, amount, domain.Income,
			fmt.Sprintf("Loan repayment received for loan %s", loan.LoanID), loan.CurrencyCode,
			[]domain.Allocation{{AccountID: target.AccountID, Amount: amount}}, lenderBalance); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientFunds) {
			metrics.SettlementsTotal.WithLabelValues("settle", "insufficient_funds").Inc()
		} else {
			metrics.SettlementsTotal.WithLabelValues("settle", "failed").Inc()
		}
		return err
	}
	metrics.SettlementsTotal.WithLabelValues("settle", "succeeded").Inc()
	return nil
}

// Refund implements portssvc.EscrowSvcFacade.
func (s *escrowService) Refund(ctx context.Context, loan *domain.P2PLoan) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	escrow, err := s.repos.EscrowRepo.FindEscrowByID(ctx, loan.EscrowID)
	if err != nil {
		return fmt.Errorf("failed to load escrow for refund: %w", err)
	}
	if escrow.HoldStatus != domain.HoldHeld {
		return fmt.Errorf("%w: escrow %s is %s, refund requires held", apperrors.ErrConflict, escrow.EscrowID, escrow.HoldStatus)
	}

	now := time.Now().UTC()
	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		accounts, err := repos.LedgerRepo.FindAccountsByUserID(ctx, loan.LenderID)
		if err != nil {
			return err
		}
		target, err := resolveCreditAccount(accounts)
		if err != nil {
			return err
		}
		if _, err := repos.LedgerRepo.Increment(ctx, target.AccountID, escrow.AmountHeld); err != nil {
			return err
		}
		balanceAfter, err := repos.LedgerRepo.TotalBalance(ctx, loan.LenderID)
		if err != nil {
			return err
		}
		txn, err := writeLedgerTransaction(ctx, repos.LedgerRepo, loan.LenderID, escrow.AmountHeld, domain.Income,
			fmt.Sprintf("Escrow refund for loan %s", loan.LoanID), loan.CurrencyCode,
			[]domain.Allocation{{AccountID: target.AccountID, Amount: escrow.AmountHeld}}, balanceAfter)
		if err != nil {
			return err
		}

		escrow.HoldStatus = domain.HoldRefunded
		escrow.RefundTxID = txn.TransactionID
		escrow.LastUpdatedAt = now
		escrow.LastUpdatedBy = loan.LenderID
		if err := repos.EscrowRepo.UpdateEscrow(ctx, *escrow); err != nil {
			return err
		}

		loan.EscrowStatus = domain.EscrowNone
		loan.LastUpdatedAt = now
		loan.LastUpdatedBy = loan.LenderID
		return repos.LoanRepo.UpdateLoan(ctx, *loan)
	})
	if err != nil {
		metrics.SettlementsTotal.WithLabelValues("refund", "failed").Inc()
		return err
	}

	metrics.SettlementsTotal.WithLabelValues("refund", "succeeded").Inc()
	logger.Info("Escrow refunded", slog.String("loan_id", loan.LoanID), slog.String("escrow_id", escrow.EscrowID))
	return nil
}

// writeLedgerTransaction generates a unique code and records one transaction
// through the given (possibly tx-bound) ledger repository.
func writeLedgerTransaction(ctx context.Context, ledger portsrepo.LedgerRepository, userID string, amount decimal.Decimal, txnType domain.TransactionType, description, currency string, allocations []domain.Allocation, balanceAfter decimal.Decimal) (*domain.Transaction, error) {
	code, err := txcode.Generate(ctx, "TXN", ledger.TransactionCodeExists)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		UserID:          userID,
		Amount:          moneyutils.Round2(amount),
		TransactionType: txnType,
		Description:     description,
		CurrencyCode:    currency,
		TransactionCode: code,
		Allocations:     allocations,
		BalanceAfter:    balanceAfter,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}
	if err := ledger.RecordTransaction(ctx, txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

// resolveCreditAccount picks the Daily account, falling back to the first.
func resolveCreditAccount(accounts []domain.Account) (*domain.Account, error) {
	if len(accounts) == 0 {
		return nil, apperrors.ErrNoAccountsAvailable
	}
	for i := range accounts {
		if accounts[i].AccountType == domain.Daily {
			return &accounts[i], nil
		}
	}
	return &accounts[0], nil
}

// resolveDeductionAccount picks the explicit deduction account when set,
// otherwise Daily, otherwise the first account.
func resolveDeductionAccount(accounts []domain.Account, explicitID string) (*domain.Account, error) {
	if explicitID != "" {
		for i := range accounts {
			if accounts[i].AccountID == explicitID {
				return &accounts[i], nil
			}
		}
		return nil, fmt.Errorf("%w: deduction account %s", apperrors.ErrNotFound, explicitID)
	}
	return resolveCreditAccount(accounts)
}
