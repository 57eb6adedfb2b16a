package pgsql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	"github.com/stashpal/stashpal_backend/internal/utils/pagination"
)

const pgUniqueViolation = "23505"

type PgxLedgerRepository struct {
	db DBTX
}

// newPgxLedgerRepository creates a repository for accounts and transactions.
func newPgxLedgerRepository(db DBTX) portsrepo.LedgerRepository {
	return &PgxLedgerRepository{db: db}
}

var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

const accountColumns = `account_id, user_id, name, account_type, currency_code, balance, percentage, target, status, is_auto_distribute, is_wallet, is_active, created_at, created_by, last_updated_at, last_updated_by`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var acc domain.Account
	err := row.Scan(
		&acc.AccountID,
		&acc.UserID,
		&acc.Name,
		&acc.AccountType,
		&acc.CurrencyCode,
		&acc.Balance,
		&acc.Percentage,
		&acc.Target,
		&acc.Status,
		&acc.IsAutoDistribute,
		&acc.IsWallet,
		&acc.IsActive,
		&acc.CreatedAt,
		&acc.CreatedBy,
		&acc.LastUpdatedAt,
		&acc.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// SaveAccount inserts a new account.
func (r *PgxLedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16);
	`
	_, err := r.db.Exec(ctx, query,
		account.AccountID,
		account.UserID,
		account.Name,
		account.AccountType,
		account.CurrencyCode,
		account.Balance,
		account.Percentage,
		account.Target,
		account.Status,
		account.IsAutoDistribute,
		account.IsWallet,
		account.IsActive,
		account.CreatedAt,
		account.CreatedBy,
		account.LastUpdatedAt,
		account.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
		}
		return fmt.Errorf("failed to save account %s: %w", account.AccountID, err)
	}
	return nil
}

// UpdateAccount updates the account's mutable settings. Balance is deliberately
// absent from the SET list; it moves only through the atomic primitives below.
func (r *PgxLedgerRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	query := `
		UPDATE accounts
		SET name = $2, percentage = $3, target = $4, status = $5, is_auto_distribute = $6, is_wallet = $7, is_active = $8, last_updated_at = $9, last_updated_by = $10
		WHERE account_id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		account.AccountID,
		account.Name,
		account.Percentage,
		account.Target,
		account.Status,
		account.IsAutoDistribute,
		account.IsWallet,
		account.IsActive,
		account.LastUpdatedAt,
		account.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.AccountID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ConditionalDecrement atomically subtracts amount, guarded by the balance
// check in the WHERE clause. The database enforces the non-negative invariant;
// no read-modify-write is involved.
func (r *PgxLedgerRepository) ConditionalDecrement(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance - $2, last_updated_at = NOW()
		WHERE account_id = $1 AND balance >= $2
		RETURNING ` + accountColumns + `;
	`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, accountID, amount))
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to decrement account %s: %w", accountID, err)
	}

	// No row updated: distinguish a missing account from an insufficient balance.
	if _, findErr := r.FindAccountByID(ctx, accountID); findErr != nil {
		return nil, findErr
	}
	return nil, fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, accountID)
}

// Increment atomically adds amount to the account balance.
func (r *PgxLedgerRepository) Increment(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, last_updated_at = NOW()
		WHERE account_id = $1
		RETURNING ` + accountColumns + `;
	`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, accountID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to increment account %s: %w", accountID, err)
	}
	return acc, nil
}

// UpdateAccountStatus persists a derived status change.
func (r *PgxLedgerRepository) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, userID string, now time.Time) error {
	query := `
		UPDATE accounts
		SET status = $2, last_updated_at = $3, last_updated_by = $4
		WHERE account_id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query, accountID, status, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update status for account %s: %w", accountID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindAccountByID retrieves an account by its ID.
func (r *PgxLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = $1;`
	acc, err := scanAccount(r.db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to find account %s: %w", accountID, err)
	}
	return acc, nil
}

// FindAccountsByUserID retrieves the user's active accounts.
func (r *PgxLedgerRepository) FindAccountsByUserID(ctx context.Context, userID string) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY created_at, account_id;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account row for user %s: %w", userID, err)
		}
		accounts = append(accounts, *acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows for user %s: %w", userID, err)
	}
	return accounts, nil
}

// TotalBalance sums the user's active account balances.
func (r *PgxLedgerRepository) TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(balance), 0) FROM accounts WHERE user_id = $1 AND is_active = TRUE;`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balances for user %s: %w", userID, err)
	}
	return total, nil
}

// TransactionCodeExists reports whether a transaction code is already in use.
func (r *PgxLedgerRepository) TransactionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE transaction_code = $1);`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction code: %w", err)
	}
	return exists, nil
}

// RecordTransaction persists an immutable transaction record.
func (r *PgxLedgerRepository) RecordTransaction(ctx context.Context, txn domain.Transaction) error {
	allocations, err := json.Marshal(txn.Allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations for transaction %s: %w", txn.TransactionID, err)
	}

	query := `
		INSERT INTO transactions (transaction_id, user_id, amount, transaction_type, description, tag, currency_code, transaction_code, allocations, balance_after, created_at, created_by, last_updated_at, last_updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14);
	`
	_, err = r.db.Exec(ctx, query,
		txn.TransactionID,
		txn.UserID,
		txn.Amount,
		txn.TransactionType,
		txn.Description,
		txn.Tag,
		txn.CurrencyCode,
		txn.TransactionCode,
		allocations,
		txn.BalanceAfter,
		txn.CreatedAt,
		txn.CreatedBy,
		txn.LastUpdatedAt,
		txn.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: transaction code %s already exists", apperrors.ErrDuplicate, txn.TransactionCode)
		}
		return fmt.Errorf("failed to record transaction %s: %w", txn.TransactionID, err)
	}
	return nil
}

// ListTransactionsByUserID retrieves a page of the user's transactions, newest
// first, with keyset pagination on (created_at, transaction_id).
func (r *PgxLedgerRepository) ListTransactionsByUserID(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT transaction_id, user_id, amount, transaction_type, description, tag, currency_code, transaction_code, allocations, balance_after, created_at, created_by, last_updated_at, last_updated_by
		FROM transactions
		WHERE user_id = $1
	`
	args := []any{userID}

	if nextToken != nil && *nextToken != "" {
		cursorAt, cursorID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		query += ` AND (created_at, transaction_id) < ($2, $3)`
		args = append(args, cursorAt, cursorID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, transaction_id DESC LIMIT $%d;`, len(args)+1)
	args = append(args, limit+1)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query transactions for user %s: %w", userID, err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var txn domain.Transaction
		var allocations []byte
		err := rows.Scan(
			&txn.TransactionID,
			&txn.UserID,
			&txn.Amount,
			&txn.TransactionType,
			&txn.Description,
			&txn.Tag,
			&txn.CurrencyCode,
			&txn.TransactionCode,
			&allocations,
			&txn.BalanceAfter,
			&txn.CreatedAt,
			&txn.CreatedBy,
			&txn.LastUpdatedAt,
			&txn.LastUpdatedBy,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan transaction row for user %s: %w", userID, err)
		}
		if len(allocations) > 0 {
			if err := json.Unmarshal(allocations, &txn.Allocations); err != nil {
				return nil, nil, fmt.Errorf("failed to unmarshal allocations for transaction %s: %w", txn.TransactionID, err)
			}
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating transaction rows for user %s: %w", userID, err)
	}

	var token *string
	if len(txns) > limit {
		txns = txns[:limit]
		last := txns[len(txns)-1]
		t := pagination.EncodeCursor(last.CreatedAt, last.TransactionID)
		token = &t
	}
	return txns, token, nil
}
