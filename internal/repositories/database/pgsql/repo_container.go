package pgsql

import (
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
)

// NewRepositoryProvider builds the pool-bound repository set.
func NewRepositoryProvider(pool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return newRepositoryProvider(pool)
}

// newRepositoryProvider binds every repository to db, which is either the pool
// or one transaction.
func newRepositoryProvider(db DBTX) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		LedgerRepo: newPgxLedgerRepository(db),
		LoanRepo:   newPgxLoanRepository(db),
		EscrowRepo: newPgxEscrowRepository(db),
		UserRepo:   newPgxUserRepository(db),
	}
}
