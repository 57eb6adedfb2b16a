package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	"github.com/stashpal/stashpal_backend/internal/utils/pagination"
)

type ledgerData dataset

var _ portsrepo.LedgerRepository = (*ledgerData)(nil)

func (d *ledgerData) SaveAccount(ctx context.Context, account domain.Account) error {
	if _, ok := d.accounts[account.AccountID]; ok {
		return fmt.Errorf("%w: account with ID %s already exists", apperrors.ErrDuplicate, account.AccountID)
	}
	d.accounts[account.AccountID] = account
	return nil
}

func (d *ledgerData) UpdateAccount(ctx context.Context, account domain.Account) error {
	existing, ok := d.accounts[account.AccountID]
	if !ok {
		return apperrors.ErrNotFound
	}
	// Balance moves only through the atomic primitives.
	account.Balance = existing.Balance
	d.accounts[account.AccountID] = account
	return nil
}

func (d *ledgerData) ConditionalDecrement(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	acc, ok := d.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	if acc.Balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrInsufficientFunds, accountID)
	}
	acc.Balance = acc.Balance.Sub(amount)
	acc.LastUpdatedAt = time.Now().UTC()
	d.accounts[accountID] = acc
	return &acc, nil
}

func (d *ledgerData) Increment(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	acc, ok := d.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	acc.Balance = acc.Balance.Add(amount)
	acc.LastUpdatedAt = time.Now().UTC()
	d.accounts[accountID] = acc
	return &acc, nil
}

func (d *ledgerData) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, userID string, now time.Time) error {
	acc, ok := d.accounts[accountID]
	if !ok {
		return apperrors.ErrNotFound
	}
	acc.Status = status
	acc.LastUpdatedAt = now
	acc.LastUpdatedBy = userID
	d.accounts[accountID] = acc
	return nil
}

func (d *ledgerData) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	acc, ok := d.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", apperrors.ErrNotFound, accountID)
	}
	return &acc, nil
}

func (d *ledgerData) FindAccountsByUserID(ctx context.Context, userID string) ([]domain.Account, error) {
	accounts := []domain.Account{}
	for _, acc := range d.accounts {
		if acc.UserID == userID && acc.IsActive {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool {
		if !accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
		}
		return accounts[i].AccountID < accounts[j].AccountID
	})
	return accounts, nil
}

func (d *ledgerData) TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, acc := range d.accounts {
		if acc.UserID == userID && acc.IsActive {
			total = total.Add(acc.Balance)
		}
	}
	return total, nil
}

func (d *ledgerData) TransactionCodeExists(ctx context.Context, code string) (bool, error) {
	for _, txn := range d.transactions {
		if txn.TransactionCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (d *ledgerData) RecordTransaction(ctx context.Context, txn domain.Transaction) error {
	for _, existing := range d.transactions {
		if existing.TransactionID == txn.TransactionID || existing.TransactionCode == txn.TransactionCode {
			return fmt.Errorf("%w: transaction code %s already exists", apperrors.ErrDuplicate, txn.TransactionCode)
		}
	}
	d.transactions = append(d.transactions, txn)
	return nil
}

func (d *ledgerData) ListTransactionsByUserID(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	if limit <= 0 {
		limit = 20
	}

	txns := []domain.Transaction{}
	for _, txn := range d.transactions {
		if txn.UserID == userID {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].TransactionID > txns[j].TransactionID
	})

	if nextToken != nil && *nextToken != "" {
		cursorAt, cursorID, err := pagination.DecodeCursor(*nextToken)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		filtered := txns[:0]
		for _, txn := range txns {
			if txn.CreatedAt.Before(cursorAt) || (txn.CreatedAt.Equal(cursorAt) && txn.TransactionID < cursorID) {
				filtered = append(filtered, txn)
			}
		}
		txns = filtered
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

type lockedLedgerRepository struct {
	s *Store
}

var _ portsrepo.LedgerRepository = (*lockedLedgerRepository)(nil)

func (r *lockedLedgerRepository) SaveAccount(ctx context.Context, account domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).SaveAccount(ctx, account)
}

func (r *lockedLedgerRepository) UpdateAccount(ctx context.Context, account domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).UpdateAccount(ctx, account)
}

func (r *lockedLedgerRepository) ConditionalDecrement(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).ConditionalDecrement(ctx, accountID, amount)
}

func (r *lockedLedgerRepository) Increment(ctx context.Context, accountID string, amount decimal.Decimal) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).Increment(ctx, accountID, amount)
}

func (r *lockedLedgerRepository) UpdateAccountStatus(ctx context.Context, accountID string, status domain.AccountStatus, userID string, now time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).UpdateAccountStatus(ctx, accountID, status, userID, now)
}

func (r *lockedLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).FindAccountByID(ctx, accountID)
}

func (r *lockedLedgerRepository) FindAccountsByUserID(ctx context.Context, userID string) ([]domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).FindAccountsByUserID(ctx, userID)
}

func (r *lockedLedgerRepository) TotalBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).TotalBalance(ctx, userID)
}

func (r *lockedLedgerRepository) TransactionCodeExists(ctx context.Context, code string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).TransactionCodeExists(ctx, code)
}

func (r *lockedLedgerRepository) RecordTransaction(ctx context.Context, txn domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).RecordTransaction(ctx, txn)
}

func (r *lockedLedgerRepository) ListTransactionsByUserID(ctx context.Context, userID string, limit int, nextToken *string) ([]domain.Transaction, *string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*ledgerData)(r.s.data).ListTransactionsByUserID(ctx, userID, limit, nextToken)
}
