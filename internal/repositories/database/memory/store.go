// Package memory provides an in-memory implementation of the repository ports.
// It backs tests and local development; the pgsql package is the production
// store. A single mutex serializes access, and WithTx gets all-or-nothing
// semantics by snapshotting the dataset and restoring it when the closure
// fails.
package memory

import (
	"context"
	"sync"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
)

// dataset holds every record. Its methods are not safe for concurrent use;
// locking happens in the wrappers.
type dataset struct {
	accounts     map[string]domain.Account
	transactions []domain.Transaction
	loans        map[string]domain.P2PLoan
	escrows      map[string]domain.Escrow
	users        map[string]domain.User
	usersByEmail map[string]string
}

func newDataset() *dataset {
	return &dataset{
		accounts:     make(map[string]domain.Account),
		loans:        make(map[string]domain.P2PLoan),
		escrows:      make(map[string]domain.Escrow),
		users:        make(map[string]domain.User),
		usersByEmail: make(map[string]string),
	}
}

func (d *dataset) clone() *dataset {
	c := &dataset{
		accounts:     make(map[string]domain.Account, len(d.accounts)),
		transactions: make([]domain.Transaction, len(d.transactions)),
		loans:        make(map[string]domain.P2PLoan, len(d.loans)),
		escrows:      make(map[string]domain.Escrow, len(d.escrows)),
		users:        make(map[string]domain.User, len(d.users)),
		usersByEmail: make(map[string]string, len(d.usersByEmail)),
	}
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	copy(c.transactions, d.transactions)
	for k, v := range d.loans {
		c.loans[k] = cloneLoan(v)
	}
	for k, v := range d.escrows {
		c.escrows[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.usersByEmail {
		c.usersByEmail[k] = v
	}
	return c
}

func cloneLoan(loan domain.P2PLoan) domain.P2PLoan {
	schedule := make([]domain.ScheduleEntry, len(loan.RepaymentSchedule))
	copy(schedule, loan.RepaymentSchedule)
	loan.RepaymentSchedule = schedule
	return loan
}

// Store is the shared in-memory database.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

var _ portsrepo.TransactionManager = (*Store)(nil)

// WithTx implements portsrepo.TransactionManager. The store lock is held for
// the whole closure, so a transaction sees no interleaved writes; on error the
// pre-transaction snapshot is restored.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos portsrepo.RepositoryProvider) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, txProvider(s.data)); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// NewRepositoryProvider builds the locked repository set over the store.
func NewRepositoryProvider(s *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LedgerRepo: &lockedLedgerRepository{s: s},
		LoanRepo:   &lockedLoanRepository{s: s},
		EscrowRepo: &lockedEscrowRepository{s: s},
		UserRepo:   &lockedUserRepository{s: s},
	}
}

// txProvider builds repositories bound directly to the dataset. Only valid
// while the store lock is held.
func txProvider(d *dataset) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LedgerRepo: (*ledgerData)(d),
		LoanRepo:   (*loanData)(d),
		EscrowRepo: (*escrowData)(d),
		UserRepo:   (*userData)(d),
	}
}
