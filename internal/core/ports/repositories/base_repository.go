package repositories

import "context"

// TransactionManager runs a closure within one atomic storage transaction. The
// repositories handed to fn are bound to that transaction: every mutation made
// through them becomes visible together on commit, or not at all if fn returns
// an error. The multi-account escrow operations (hold, disburse, settle,
// refund) each run as exactly one such unit.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos RepositoryProvider) error) error
}
