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
)

type PgxLoanRepository struct {
	db DBTX
}

// newPgxLoanRepository creates a repository for P2P loans.
func newPgxLoanRepository(db DBTX) portsrepo.LoanRepository {
	return &PgxLoanRepository{db: db}
}

var _ portsrepo.LoanRepository = (*PgxLoanRepository)(nil)

const loanColumns = `loan_id, borrower_id, lender_id, principal, interest_rate, total_amount, remaining_amount, currency_code, repayment_schedule, cadence, status, escrow_id, escrow_status, emergency_approved, auto_deduct, account_deduction_id, auto_retry_count, next_auto_attempt_at, last_auto_attempt_at, next_payment_date, next_payment_amount, created_at, created_by, last_updated_at, last_updated_by`

func scanLoan(row pgx.Row) (*domain.P2PLoan, error) {
	var loan domain.P2PLoan
	var schedule []byte
	err := row.Scan(
		&loan.LoanID,
		&loan.BorrowerID,
		&loan.LenderID,
		&loan.Principal,
		&loan.InterestRate,
		&loan.TotalAmount,
		&loan.RemainingAmount,
		&loan.CurrencyCode,
		&schedule,
		&loan.Cadence,
		&loan.Status,
		&loan.EscrowID,
		&loan.EscrowStatus,
		&loan.EmergencyApproved,
		&loan.AutoDeduct,
		&loan.AccountDeductionID,
		&loan.AutoRetryCount,
		&loan.NextAutoAttemptAt,
		&loan.LastAutoAttemptAt,
		&loan.NextPaymentDate,
		&loan.NextPaymentAmount,
		&loan.CreatedAt,
		&loan.CreatedBy,
		&loan.LastUpdatedAt,
		&loan.LastUpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &loan.RepaymentSchedule); err != nil {
			return nil, fmt.Errorf("failed to unmarshal schedule for loan %s: %w", loan.LoanID, err)
		}
	}
	return &loan, nil
}

// SaveLoan persists a new loan.
func (r *PgxLoanRepository) SaveLoan(ctx context.Context, loan domain.P2PLoan) error {
	schedule, err := json.Marshal(loan.RepaymentSchedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule for loan %s: %w", loan.LoanID, err)
	}

	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25);
	`
	_, err = r.db.Exec(ctx, query,
		loan.LoanID,
		loan.BorrowerID,
		loan.LenderID,
		loan.Principal,
		loan.InterestRate,
		loan.TotalAmount,
		loan.RemainingAmount,
		loan.CurrencyCode,
		schedule,
		loan.Cadence,
		loan.Status,
		loan.EscrowID,
		loan.EscrowStatus,
		loan.EmergencyApproved,
		loan.AutoDeduct,
		loan.AccountDeductionID,
		loan.AutoRetryCount,
		loan.NextAutoAttemptAt,
		loan.LastAutoAttemptAt,
		loan.NextPaymentDate,
		loan.NextPaymentAmount,
		loan.CreatedAt,
		loan.CreatedBy,
		loan.LastUpdatedAt,
		loan.LastUpdatedBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: loan with ID %s already exists", apperrors.ErrDuplicate, loan.LoanID)
		}
		return fmt.Errorf("failed to save loan %s: %w", loan.LoanID, err)
	}
	return nil
}

// UpdateLoan replaces the loan's mutable state.
func (r *PgxLoanRepository) UpdateLoan(ctx context.Context, loan domain.P2PLoan) error {
	schedule, err := json.Marshal(loan.RepaymentSchedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule for loan %s: %w", loan.LoanID, err)
	}

	query := `
		UPDATE loans
		SET remaining_amount = $2, repayment_schedule = $3, status = $4, escrow_id = $5, escrow_status = $6,
			emergency_approved = $7, auto_deduct = $8, account_deduction_id = $9, auto_retry_count = $10,
			next_auto_attempt_at = $11, last_auto_attempt_at = $12, next_payment_date = $13, next_payment_amount = $14,
			last_updated_at = $15, last_updated_by = $16
		WHERE loan_id = $1;
	`
	cmdTag, err := r.db.Exec(ctx, query,
		loan.LoanID,
		loan.RemainingAmount,
		schedule,
		loan.Status,
		loan.EscrowID,
		loan.EscrowStatus,
		loan.EmergencyApproved,
		loan.AutoDeduct,
		loan.AccountDeductionID,
		loan.AutoRetryCount,
		loan.NextAutoAttemptAt,
		loan.LastAutoAttemptAt,
		loan.NextPaymentDate,
		loan.NextPaymentAmount,
		loan.LastUpdatedAt,
		loan.LastUpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan %s: %w", loan.LoanID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindLoanByID retrieves a loan by its ID.
func (r *PgxLoanRepository) FindLoanByID(ctx context.Context, loanID string) (*domain.P2PLoan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = $1;`
	loan, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
		}
		return nil, fmt.Errorf("failed to find loan %s: %w", loanID, err)
	}
	return loan, nil
}

// ListLoansByUserID retrieves loans where the user participates in the given
// role, newest first.
func (r *PgxLoanRepository) ListLoansByUserID(ctx context.Context, userID string, role portsrepo.LoanRole, limit int, offset int) ([]domain.P2PLoan, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var filter string
	switch role {
	case portsrepo.RoleBorrower:
		filter = `borrower_id = $1`
	case portsrepo.RoleLender:
		filter = `lender_id = $1`
	default:
		filter = `(borrower_id = $1 OR lender_id = $1)`
	}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE ` + filter + `
		ORDER BY created_at DESC, loan_id DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query loans for user %s: %w", userID, err)
	}
	defer rows.Close()

	loans := []domain.P2PLoan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row for user %s: %w", userID, err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loan rows for user %s: %w", userID, err)
	}
	return loans, nil
}

// FindAutoDeductDue selects loans eligible for an auto-deduction attempt.
func (r *PgxLoanRepository) FindAutoDeductDue(ctx context.Context, now time.Time, maxRetries int, batchSize int) ([]domain.P2PLoan, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE auto_deduct = TRUE
		  AND status IN ('active', 'funded', 'approved', 'overdue')
		  AND remaining_amount > 0
		  AND next_payment_date IS NOT NULL AND next_payment_date <= $1
		  AND (next_auto_attempt_at IS NULL OR next_auto_attempt_at <= $1)
		  AND auto_retry_count < $2
		ORDER BY next_payment_date
		LIMIT $3;
	`
	rows, err := r.db.Query(ctx, query, now, maxRetries, batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query due loans: %w", err)
	}
	defer rows.Close()

	loans := []domain.P2PLoan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan due loan row: %w", err)
		}
		loans = append(loans, *loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due loan rows: %w", err)
	}
	return loans, nil
}

// SumPrincipalRequestedSince sums principal across the borrower's loan requests
// created at or after since, regardless of outcome.
func (r *PgxLoanRepository) SumPrincipalRequestedSince(ctx context.Context, borrowerID string, since time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(principal), 0) FROM loans WHERE borrower_id = $1 AND created_at >= $2;`
	var total decimal.Decimal
	if err := r.db.QueryRow(ctx, query, borrowerID, since).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum requested principal for borrower %s: %w", borrowerID, err)
	}
	return total, nil
}

// FindLatestRequestAt returns the creation time of the borrower's most recent
// loan request, or nil if they have none.
func (r *PgxLoanRepository) FindLatestRequestAt(ctx context.Context, borrowerID string) (*time.Time, error) {
	query := `SELECT created_at FROM loans WHERE borrower_id = $1 ORDER BY created_at DESC LIMIT 1;`
	var createdAt time.Time
	err := r.db.QueryRow(ctx, query, borrowerID).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest request for borrower %s: %w", borrowerID, err)
	}
	return &createdAt, nil
}
