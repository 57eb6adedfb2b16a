package repositories

// RepositoryProvider bundles every repository implementation so wiring can pass
// one value around instead of a parameter list per service.
type RepositoryProvider struct {
	LedgerRepo LedgerRepository
	LoanRepo   LoanRepository
	EscrowRepo EscrowRepository
	UserRepo   UserRepository
}
