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

var percentCeiling = decimal.NewFromInt(100)

// accountService manages savings accounts and exposes the transaction history.
type accountService struct {
	ledgerRepo portsrepo.LedgerRepository
	cfg        *config.Config
}

// NewAccountService creates the account management service.
func NewAccountService(ledgerRepo portsrepo.LedgerRepository, cfg *config.Config) portssvc.AccountSvcFacade {
	return &accountService{ledgerRepo: ledgerRepo, cfg: cfg}
}

var _ portssvc.AccountSvcFacade = (*accountService)(nil)

// CreateAccount implements portssvc.AccountSvcFacade.
func (s *accountService) CreateAccount(ctx context.Context, userID string, req dto.CreateAccountRequest) (*domain.Account, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if err := validateAccountSettings(req.Percentage, req.Target); err != nil {
		return nil, err
	}
	if req.IsWallet {
		if err := s.checkWalletUnique(ctx, userID, ""); err != nil {
			return nil, err
		}
	}

	currency := req.CurrencyCode
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	autoDistribute := true
	if req.IsAutoDistribute != nil {
		autoDistribute = *req.IsAutoDistribute
	}

	now := time.Now().UTC()
	account := domain.Account{
		AccountID:        uuid.NewString(),
		UserID:           userID,
		Name:             req.Name,
		AccountType:      req.AccountType,
		CurrencyCode:     currency,
		Balance:          decimal.Zero,
		Percentage:       req.Percentage,
		Target:           moneyutils.Round2(req.Target),
		Status:           domain.DeriveStatus(decimal.Zero, req.Target),
		IsAutoDistribute: autoDistribute,
		IsWallet:         req.IsWallet,
		IsActive:         true,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     userID,
			LastUpdatedAt: now,
			LastUpdatedBy: userID,
		},
	}

	if err := s.ledgerRepo.SaveAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	logger.Info("Account created",
		slog.String("account_id", account.AccountID), slog.String("account_type", string(account.AccountType)))
	return &account, nil
}

// GetAccountByID implements portssvc.AccountSvcFacade. An account belonging to
// another user is reported as not found.
func (s *accountService) GetAccountByID(ctx context.Context, userID string, accountID string) (*domain.Account, error) {
	account, err := s.ledgerRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	return account, nil
}

// ListAccounts implements portssvc.AccountSvcFacade.
func (s *accountService) ListAccounts(ctx context.Context, userID string) (*dto.ListAccountsResponse, error) {
	accounts, err := s.ledgerRepo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	total := decimal.Zero
	for _, acc := range accounts {
		total = total.Add(acc.Balance)
	}
	return &dto.ListAccountsResponse{
		Accounts:     dto.ToListAccountResponse(accounts),
		TotalBalance: total,
	}, nil
}

// UpdateAccount implements portssvc.AccountSvcFacade. The balance is never
// touched here; a target change re-derives the status.
func (s *accountService) UpdateAccount(ctx context.Context, userID string, accountID string, req dto.UpdateAccountRequest) (*domain.Account, error) {
	account, err := s.GetAccountByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Percentage != nil {
		account.Percentage = *req.Percentage
	}
	if req.Target != nil {
		account.Target = moneyutils.Round2(*req.Target)
	}
	if req.IsAutoDistribute != nil {
		account.IsAutoDistribute = *req.IsAutoDistribute
	}
	if req.IsWallet != nil {
		if *req.IsWallet && !account.IsWallet {
			if err := s.checkWalletUnique(ctx, userID, accountID); err != nil {
				return nil, err
			}
		}
		account.IsWallet = *req.IsWallet
	}

	if err := validateAccountSettings(account.Percentage, account.Target); err != nil {
		return nil, err
	}
	account.Status = domain.DeriveStatus(account.Balance, account.Target)
	account.LastUpdatedAt = time.Now().UTC()
	account.LastUpdatedBy = userID

	if err := s.ledgerRepo.UpdateAccount(ctx, *account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// ListTransactions implements portssvc.AccountSvcFacade.
func (s *accountService) ListTransactions(ctx context.Context, userID string, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error) {
	txns, nextToken, err := s.ledgerRepo.ListTransactionsByUserID(ctx, userID, params.Limit, params.NextToken)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return &dto.ListTransactionsResponse{
		Transactions: dto.ToTransactionResponses(txns),
		NextToken:    nextToken,
	}, nil
}

func (s *accountService) checkWalletUnique(ctx context.Context, userID string, excludeAccountID string) error {
	accounts, err := s.ledgerRepo.FindAccountsByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check wallet uniqueness: %w", err)
	}
	for _, acc := range accounts {
		if acc.IsWallet && acc.AccountID != excludeAccountID {
			return fmt.Errorf("%w: user already has a wallet account", apperrors.ErrConflict)
		}
	}
	return nil
}

func validateAccountSettings(percentage, target decimal.Decimal) error {
	if percentage.LessThan(decimal.Zero) || percentage.GreaterThan(percentCeiling) {
		return fmt.Errorf("%w: percentage must be between 0 and 100", apperrors.ErrValidation)
	}
	if target.LessThan(decimal.Zero) {
		return fmt.Errorf("%w: target must not be negative", apperrors.ErrValidation)
	}
	return nil
}
