package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	"github.com/stashpal/stashpal_backend/internal/dto"
)

// AccountSvcFacade manages a user's savings accounts and transaction history.
type AccountSvcFacade interface {
	CreateAccount(ctx context.Context, userID string, req dto.CreateAccountRequest) (*domain.Account, error)
	GetAccountByID(ctx context.Context, userID string, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID string) (*dto.ListAccountsResponse, error)
	UpdateAccount(ctx context.Context, userID string, accountID string, req dto.UpdateAccountRequest) (*domain.Account, error)
	ListTransactions(ctx context.Context, userID string, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error)
}
