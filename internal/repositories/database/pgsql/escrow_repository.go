package pgsql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
	"github.com/stashpal/stashpal_backend/internal/core/domain"
	portsrepo "github.com/stashpal/stashpal_backend/internal/core/ports/repositories"
)

type PgxEscrowRepository struct {
	db DBTX
}

// newPgxEscrowRepository creates a repository for escrow records.
func newPgxEscrowRepository(db DBTX) portsrepo.EscrowRepository {
	return &PgxEscrowRepository{db: db}
}

var _ portsrepo.EscrowRepository = (*PgxEscrowRepository)(nil)

const escrowColumns = `escrow_id, loan_id, lender_id, amount_held, hold_status, disbursement_tx_id, refund_tx_id, created_at, created_by, last_updated_at, last_updated_by`

func scanEscrow(row pgx.Row) (*domain.Escrow, error) {
	var esc domain.Escrow
	err := row.Scan(
		&esc.EscrowID,
		&esc.LoanID,
		&esc.LenderID,
		&esc.AmountHeld,
		&esc.HoldStatus,
		&esc.DisbursementTxID,
		&esc.RefundTxID,
		&esc.CreatedAt,
		&esc.CreatedBy,
		&esc.LastUpdatedAt,
		&esc.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &esc, nil
}

// SaveEscrow persists a new escrow record. The partial unique index on
// (loan_id) WHERE hold_status = 'held' enforces at most one held escrow per
// loan at the storage layer.
func (r *PgxEscrowRepository) SaveEscrow(ctx context.Context, escrow domain.Escrow) error {
	query := `
		INSERT INTO escrows (` + escrowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`
	_, err := r.db.Exec(ctx, query,
		escrow.EscrowID,
		escrow.LoanID,
		escrow.LenderID,
		escrow.AmountHeld,
		escrow.HoldStatus,
		escrow.DisbursementTxID,
		escrow.RefundTxID,
		escrow.CreatedAt,
		escrow.CreatedBy,
		escrow.LastUpdatedAt,
		escrow.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: an escrow is already held for loan %s", apperrors.ErrConflict, escrow.LoanID)
		}
		return fmt.Errorf("failed to save escrow %s: %w", escrow.EscrowID, err)
	}
	return nil
}

// UpdateEscrow replaces the escrow's mutable state.
func (r *PgxEscrowRepository) UpdateEscrow(ctx context.Context, escrow domain.Escrow) error {
	query := `
		UPDATE escrows
		SET hold_status = $2, disbursement_tx_id = $3, refund_tx_id = $4, last_updated_at = $5, last_updated_by = $6
		WHERE escrow_id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		escrow.EscrowID,
		escrow.HoldStatus,
		escrow.DisbursementTxID,
		escrow.RefundTxID,
		escrow.LastUpdatedAt,
		escrow.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update escrow %s: %w", escrow.EscrowID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindEscrowByID retrieves an escrow by its ID.
func (r *PgxEscrowRepository) FindEscrowByID(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE escrow_id = $1;`
	esc, err := scanEscrow(r.db.QueryRow(ctx, query, escrowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: escrow %s", apperrors.ErrNotFound, escrowID)
		}
		return nil, fmt.Errorf("failed to find escrow %s: %w", escrowID, err)
	}
	return esc, nil
}

// FindHeldEscrowByLoanID retrieves the escrow currently held for a loan.
func (r *PgxEscrowRepository) FindHeldEscrowByLoanID(ctx context.Context, loanID string) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE loan_id = $1 AND hold_status = 'held';`
	esc, err := scanEscrow(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: no held escrow for loan %s", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("failed to find held escrow for loan %s: %w", loanID, err)
	}
	return esc, nil
}
