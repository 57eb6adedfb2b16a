package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
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
	"github.com/stashpal/stashpal_backend/internal/platform/metrics"
	"github.com/stashpal/stashpal_backend/internal/utils/moneyutils"
	"github.com/stashpal/stashpal_backend/internal/utils/txcode"
)

// ErrAllocationFailed wraps ledger failures surfaced during an allocation so
// callers keep the original error kind via errors.Is/As.
var ErrAllocationFailed = errors.New("allocation failed")

// targetKind is the tagged destination variant for one income event. It
// replaces the loose target/accountID option bag at the service boundary.
type targetKind int

const (
	targetAuto targetKind = iota
	targetWallet
	targetAccount
)

type allocationTarget struct {
	kind      targetKind
	accountID string
}

func destinationFromRequest(req dto.AllocateIncomeRequest) allocationTarget {
	switch {
	case req.AccountID != "":
		return allocationTarget{kind: targetAccount, accountID: req.AccountID}
	case req.Target == "wallet":
		return allocationTarget{kind: targetWallet}
	default:
		return allocationTarget{kind: targetAuto}
	}
}

// allocationService splits income events across a user's accounts.
//
// The per-account loop deliberately mirrors the historical behaviour: each
// account's credit, status update and side records are applied independently,
// not inside one cross-account transaction. A mid-loop failure can leave some
// accounts credited and others not. The loop sits behind LedgerRepository so it
// can later be upgraded to a single multi-account transaction without touching
// callers.
type allocationService struct {
	ledgerRepo portsrepo.LedgerRepository
	cfg        *config.Config
}

// NewAllocationService creates the allocation engine.
func NewAllocationService(ledgerRepo portsrepo.LedgerRepository, cfg *config.Config) portssvc.AllocationSvcFacade {
	return &allocationService{ledgerRepo: ledgerRepo, cfg: cfg}
}

var _ portssvc.AllocationSvcFacade = (*allocationService)(nil)

// AllocateIncome implements portssvc.AllocationSvcFacade.
func (s *allocationService) AllocateIncome(ctx context.Context, userID string, req dto.AllocateIncomeRequest) (*dto.AllocationResult, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	amount := moneyutils.Round2(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, fmt.Errorf("%w: income amount must be positive", apperrors.ErrValidation)
	}
	currency := req.CurrencyCode
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}

	// Bypass tags skip distribution entirely: log the income, touch nothing.
	if domain.IsBypassTag(req.Tag) {
		result, err := s.recordBypassIncome(ctx, userID, amount, currency, req)
		if err != nil {
			metrics.AllocationsTotal.WithLabelValues("failed").Inc()
			return nil, nil, err
		}
		metrics.AllocationsTotal.WithLabelValues("bypassed").Inc()
		logger.Info("Income logged with bypass tag, no accounts mutated",
			slog.String("tag", req.Tag), slog.String("amount", amount.String()))
		return result, nil, nil
	}

	dest := destinationFromRequest(req)

	var (
		result *dto.AllocationResult
		events []domain.Notification
		err    error
	)
	switch dest.kind {
	case targetAuto:
		result, events, err = s.autoDistribute(ctx, userID, amount, currency, req)
	default:
		result, err = s.creditSingleAccount(ctx, userID, amount, currency, req, dest)
	}
	if err != nil {
		metrics.AllocationsTotal.WithLabelValues("failed").Inc()
		return nil, nil, err
	}
	metrics.AllocationsTotal.WithLabelValues("succeeded").Inc()
	return result, events, nil
}

// recordBypassIncome writes exactly one income transaction and leaves every
// account balance untouched.
func (s *allocationService) recordBypassIncome(ctx context.Context, userID string, amount decimal.Decimal, currency string, req dto.AllocateIncomeRequest) (*dto.AllocationResult, error) {
	total, err := s.ledgerRepo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	txn, err := s.writeTransaction(ctx, userID, amount, domain.Income, req.Description, req.Tag, currency, nil, total)
	if err != nil {
		return nil, err
	}
	return &dto.AllocationResult{
		Allocations:     []dto.AllocationEntry{},
		MainTransaction: dto.ToTransactionResponse(txn),
		CurrentBalance:  total,
	}, nil
}

// creditSingleAccount routes the full amount into one resolved destination
// account: explicit id, then the wallet-flagged account, then the Daily
// account, then the first account.
func (s *allocationService) creditSingleAccount(ctx context.Context, userID string, amount decimal.Decimal, currency string, req dto.AllocateIncomeRequest, dest allocationTarget) (*dto.AllocationResult, error) {
	accounts, err := s.ledgerRepo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	target, err := resolveDestination(accounts, dest)
	if err != nil {
		return nil, err
	}

	updated, err := s.ledgerRepo.Increment(ctx, target.AccountID, amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	status := domain.DeriveStatus(updated.Balance, updated.Target)
	if status != updated.Status {
		if err := s.ledgerRepo.UpdateAccountStatus(ctx, updated.AccountID, status, userID, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
	}

	total, err := s.ledgerRepo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	allocations := []domain.Allocation{{AccountID: updated.AccountID, Amount: amount}}
	txn, err := s.writeTransaction(ctx, userID, amount, domain.Income, req.Description, req.Tag, currency, allocations, total)
	if err != nil {
		return nil, err
	}

	return &dto.AllocationResult{
		Allocations: []dto.AllocationEntry{{
			AccountID:   updated.AccountID,
			AccountType: updated.AccountType,
			Amount:      amount,
			NewBalance:  updated.Balance,
			Status:      status,
		}},
		MainTransaction: dto.ToTransactionResponse(txn),
		CurrentBalance:  total,
	}, nil
}

// autoDistribute splits the amount across every auto-distribute account by its
// percentage share. Percentages are deliberately not normalised to sum to 100.
func (s *allocationService) autoDistribute(ctx context.Context, userID string, amount decimal.Decimal, currency string, req dto.AllocateIncomeRequest) (*dto.AllocationResult, []domain.Notification, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	accounts, err := s.ledgerRepo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	included := make([]domain.Account, 0, len(accounts))
	for _, acc := range accounts {
		if acc.IsAutoDistribute {
			included = append(included, acc)
		}
	}
	if len(included) == 0 {
		return nil, nil, apperrors.ErrNoAccountsAvailable
	}
	sort.SliceStable(included, func(i, j int) bool {
		return domain.AllocationPriority(included[i].AccountType) < domain.AllocationPriority(included[j].AccountType)
	})

	now := time.Now().UTC()
	entries := make([]dto.AllocationEntry, 0, len(included))
	splits := make([]domain.Allocation, 0, len(included))
	events := make([]domain.Notification, 0)
	shortfalls := make([]dto.AllocationEntry, 0)

	for _, acc := range included {
		share := moneyutils.PercentOf(amount, acc.Percentage)
		if share.LessThanOrEqual(decimal.Zero) {
			continue
		}

		updated, err := s.ledgerRepo.Increment(ctx, acc.AccountID, share)
		if err != nil {
			// The loop is not one transaction: earlier credits are already
			// visible. Stop here and surface the cause.
			logger.Error("Account credit failed mid-allocation",
				slog.String("account_id", acc.AccountID), slog.String("error", err.Error()))
			return nil, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}

		status := domain.DeriveStatus(updated.Balance, updated.Target)
		if err := s.ledgerRepo.UpdateAccountStatus(ctx, updated.AccountID, status, userID, now); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}

		entry := dto.AllocationEntry{
			AccountID:   updated.AccountID,
			AccountType: updated.AccountType,
			Amount:      share,
			NewBalance:  updated.Balance,
			Status:      status,
		}

		switch status {
		case domain.StatusRed:
			entry.Shortfall = updated.Target.Sub(updated.Balance)
			shortfalls = append(shortfalls, entry)
			events = append(events, domain.Notification{
				UserID:    userID,
				Type:      domain.NotifyMissedDeposit,
				Title:     "Missed deposit",
				Message:   fmt.Sprintf("%s account is %s short of its target", updated.AccountType, entry.Shortfall.StringFixed(2)),
				RelatedID: updated.AccountID,
				Severity:  domain.SeverityWarning,
				Meta:      map[string]string{"shortfall": entry.Shortfall.StringFixed(2)},
			})
		case domain.StatusBlue:
			events = append(events, domain.Notification{
				UserID:    userID,
				Type:      domain.NotifySurplus,
				Title:     "Target exceeded",
				Message:   fmt.Sprintf("%s account is above its target", updated.AccountType),
				RelatedID: updated.AccountID,
				Severity:  domain.SeverityInfo,
			})
		}

		entries = append(entries, entry)
		splits = append(splits, domain.Allocation{AccountID: updated.AccountID, Amount: share})
	}

	total, err := s.ledgerRepo.TotalBalance(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	// Shortfall expense records. The Daily account is the primary spending
	// account: when it has a shortfall only that one is recorded; otherwise one
	// expense per shortfalled account in priority order.
	if err := s.writeShortfallExpenses(ctx, userID, currency, shortfalls, total); err != nil {
		return nil, nil, err
	}

	// One summary income transaction covering the whole allocation.
	txn, err := s.writeTransaction(ctx, userID, amount, domain.Income, req.Description, req.Tag, currency, splits, total)
	if err != nil {
		return nil, nil, err
	}

	return &dto.AllocationResult{
		Allocations:     entries,
		MainTransaction: dto.ToTransactionResponse(txn),
		CurrentBalance:  total,
	}, events, nil
}

func (s *allocationService) writeShortfallExpenses(ctx context.Context, userID string, currency string, shortfalls []dto.AllocationEntry, balanceAfter decimal.Decimal) error {
	if len(shortfalls) == 0 {
		return nil
	}
	for _, sf := range shortfalls {
		if sf.AccountType != domain.Daily {
			continue
		}
		_, err := s.writeTransaction(ctx, userID, sf.Shortfall, domain.Expense,
			fmt.Sprintf("Missed deposit shortfall for %s account", sf.AccountType), "", currency,
			[]domain.Allocation{{AccountID: sf.AccountID, Amount: sf.Shortfall}}, balanceAfter)
		return err
	}
	for _, sf := range shortfalls {
		_, err := s.writeTransaction(ctx, userID, sf.Shortfall, domain.Expense,
			fmt.Sprintf("Missed deposit shortfall for %s account", sf.AccountType), "", currency,
			[]domain.Allocation{{AccountID: sf.AccountID, Amount: sf.Shortfall}}, balanceAfter)
		if err != nil {
			return err
		}
	}
	return nil
}

// writeTransaction generates a unique code and persists one immutable record.
func (s *allocationService) writeTransaction(ctx context.Context, userID string, amount decimal.Decimal, txnType domain.TransactionType, description, tag, currency string, allocations []domain.Allocation, balanceAfter decimal.Decimal) (*domain.Transaction, error) {
	code, err := txcode.Generate(ctx, "TXN", s.ledgerRepo.TransactionCodeExists)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	now := time.Now().UTC()
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		UserID:          userID,
		Amount:          moneyutils.Round2(amount),
		TransactionType: txnType,
		Description:     description,
		Tag:             tag,
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
	if err := s.ledgerRepo.RecordTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	return &txn, nil
}

// resolveDestination picks one destination account: explicit id, then the
// wallet-flagged account, then the Daily account, then the first account.
func resolveDestination(accounts []domain.Account, dest allocationTarget) (*domain.Account, error) {
	if len(accounts) == 0 {
		return nil, apperrors.ErrNoAccountsAvailable
	}
	if dest.kind == targetAccount {
		for i := range accounts {
			if accounts[i].AccountID == dest.accountID {
				return &accounts[i], nil
			}
		}
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, dest.accountID)
	}
	for i := range accounts {
		if accounts[i].IsWallet {
			return &accounts[i], nil
		}
	}
	for i := range accounts {
		if accounts[i].AccountType == domain.Daily {
			return &accounts[i], nil
		}
	}
	return &accounts[0], nil
}
