package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

// LedgerReader defines read operations over accounts and transactions.
type LedgerReader interface {
	// FindAccountByID retrieves a specific account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// FindAccountsByUserID retrieves all active accounts belonging to a user.
	FindAccountsByUserID(ctx context.Context, userID string) ([]domain.Account, error)

	// TotalBalance returns the sum of balances across all the user's active accounts.
	TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error)

	// TransactionCodeExists reports whether a transaction code is already in use.
	TransactionCodeExists(ctx context.Context, code string) (bool, error)

	// ListTransactionsByUserID retrieves a page of the user's transactions, newest
	// first, using an opaque next-token cursor.
	ListTransactionsByUserID(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.Transaction, *string, error)
}

// LedgerWriter defines write operations over accounts and transactions.
//
// ConditionalDecrement is the sole primitive preventing overdraft under
// concurrency: every money-moving operation above this layer composes from it.
type LedgerWriter interface {
	// SaveAccount persists a new account.
	SaveAccount(ctx context.Context, account domain.Account) error

	// UpdateAccount updates an existing account's mutable settings
	// (name, percentage, target, flags). Balance is not touched here.
	UpdateAccount(ctx context.Context, account domain.Account) error

	// ConditionalDecrement atomically subtracts amount from the account balance,
	// succeeding only if balance >= amount at the moment of update. On failure it
	// returns apperrors.ErrInsufficientFunds and performs no partial mutation.
	// Returns the account with its post-update balance on success.
	ConditionalDecrement(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error)

	// Increment atomically adds amount to the account balance and returns the
	// account with its post-update balance.
	Increment(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error)

	// UpdateAccountStatus persists a derived status change.
	UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, userID string, now time.Time) error

	// RecordTransaction persists an immutable transaction record.
	RecordTransaction(ctx context.Context, txn domain.Transaction) error
}

// LedgerRepository is the full ledger store contract.
type LedgerRepository interface {
	LedgerReader
	LedgerWriter
}
