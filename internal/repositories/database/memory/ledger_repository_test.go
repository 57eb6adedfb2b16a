package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
	"github.com/stashpal/stashpal_backend/internal/repositories/database/memory"
)

func seedAccount(t *testing.T, repos portsrepo.RepositoryProvider, userID string, balance decimal.Decimal) string {
	t.Helper()
	acc := domain.Account{
		AccountID:    uuid.NewString(),
		UserID:       userID,
		Name:         "Daily",
		AccountType:  domain.Daily,
		CurrencyCode: "USD",
		Balance:      balance,
		Status:       domain.StatusGreen,
		IsActive:     true,
	}
	require.NoError(t, repos.LedgerRepo.SaveAccount(context.Background(), acc))
	return acc.AccountID
}

func TestConditionalDecrement_NeverOverdraws(t *testing.T) {
	repos := memory.NewRepositoryProvider(memory.NewStore())
	accountID := seedAccount(t, repos, uuid.NewString(), decimal.NewFromInt(100))

	// 50 concurrent attempts to take 10 each can succeed at most 10 times.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repos.LedgerRepo.ConditionalDecrement(context.Background(), accountID, decimal.NewFromInt(10))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, apperrors.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	acc, err := repos.LedgerRepo.FindAccountByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.True(t, acc.Balance.IsZero(), "balance %s", acc.Balance)
}

func TestConditionalDecrement_Errors(t *testing.T) {
	repos := memory.NewRepositoryProvider(memory.NewStore())
	accountID := seedAccount(t, repos, uuid.NewString(), decimal.NewFromInt(5))

	_, err := repos.LedgerRepo.ConditionalDecrement(context.Background(), accountID, decimal.NewFromInt(6))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientFunds)

	_, err = repos.LedgerRepo.ConditionalDecrement(context.Background(), uuid.NewString(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestWithTx_RollbackRestoresState(t *testing.T) {
	store := memory.NewStore()
	repos := memory.NewRepositoryProvider(store)
	userID := uuid.NewString()
	a := seedAccount(t, repos, userID, decimal.NewFromInt(100))
	b := seedAccount(t, repos, userID, decimal.NewFromInt(100))

	errBoom := errors.New("boom")
	err := store.WithTx(context.Background(), func(ctx context.Context, txRepos portsrepo.RepositoryProvider) error {
		if _, err := txRepos.LedgerRepo.ConditionalDecrement(ctx, a, decimal.NewFromInt(40)); err != nil {
			return err
		}
		if _, err := txRepos.LedgerRepo.Increment(ctx, b, decimal.NewFromInt(40)); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	accA, err := repos.LedgerRepo.FindAccountByID(context.Background(), a)
	require.NoError(t, err)
	accB, err := repos.LedgerRepo.FindAccountByID(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, accA.Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, accB.Balance.Equal(decimal.NewFromInt(100)))
}

func TestListTransactionsByUserID_KeysetPagination(t *testing.T) {
	repos := memory.NewRepositoryProvider(memory.NewStore())
	userID := uuid.NewString()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		txn := domain.Transaction{
			TransactionID:   uuid.NewString(),
			UserID:          userID,
			Amount:          decimal.NewFromInt(int64(i + 1)),
			TransactionType: domain.Income,
			Description:     fmt.Sprintf("txn %d", i),
			CurrencyCode:    "USD",
			TransactionCode: fmt.Sprintf("TXN-TEST%04d", i),
			BalanceAfter:    decimal.NewFromInt(int64(i + 1)),
			AuditFields:     domain.AuditFields{CreatedAt: base.Add(time.Duration(i) * time.Hour)},
		}
		require.NoError(t, repos.LedgerRepo.RecordTransaction(context.Background(), txn))
	}

	// First page, newest first.
	page1, next, err := repos.LedgerRepo.ListTransactionsByUserID(context.Background(), userID, 2, nil)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, next)
	assert.Equal(t, "txn 4", page1[0].Description)
	assert.Equal(t, "txn 3", page1[1].Description)

	page2, next, err := repos.LedgerRepo.ListTransactionsByUserID(context.Background(), userID, 2, next)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	require.NotNil(t, next)
	assert.Equal(t, "txn 2", page2[0].Description)
	assert.Equal(t, "txn 1", page2[1].Description)

	// Last page has no next token.
	page3, next, err := repos.LedgerRepo.ListTransactionsByUserID(context.Background(), userID, 2, next)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "txn 0", page3[0].Description)
	assert.Nil(t, next)
}

func TestRecordTransaction_DuplicateCode(t *testing.T) {
	repos := memory.NewRepositoryProvider(memory.NewStore())
	userID := uuid.NewString()
	txn := domain.Transaction{
		TransactionID:   uuid.NewString(),
		UserID:          userID,
		Amount:          decimal.NewFromInt(1),
		TransactionType: domain.Income,
		Description:     "first",
		CurrencyCode:    "USD",
		TransactionCode: "TXN-DUPE1234",
		AuditFields:     domain.AuditFields{CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, repos.LedgerRepo.RecordTransaction(context.Background(), txn))

	txn.TransactionID = uuid.NewString()
	err := repos.LedgerRepo.RecordTransaction(context.Background(), txn)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)

	exists, err := repos.LedgerRepo.TransactionCodeExists(context.Background(), "TXN-DUPE1234")
	require.NoError(t, err)
	assert.True(t, exists)
}
