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
)

type loanData dataset

var _ portsrepo.LoanRepository = (*loanData)(nil)

func (d *loanData) SaveLoan(ctx context.Context, loan domain.P2PLoan) error {
	if _, ok := d.loans[loan.LoanID]; ok {
		return fmt.Errorf("%w: loan with ID %s already exists", apperrors.ErrDuplicate, loan.LoanID)
	}
	d.loans[loan.LoanID] = cloneLoan(loan)
	return nil
}

func (d *loanData) UpdateLoan(ctx context.Context, loan domain.P2PLoan) error {
	if _, ok := d.loans[loan.LoanID]; !ok {
		return apperrors.ErrNotFound
	}
	d.loans[loan.LoanID] = cloneLoan(loan)
	return nil
}

func (d *loanData) FindLoanByID(ctx context.Context, loanID string) (*domain.P2PLoan, error) {
	loan, ok := d.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
	}
	c := cloneLoan(loan)
	return &c, nil
}

func (d *loanData) ListLoansByUserID(ctx context.Context, userID string, role portsrepo.LoanRole, limit int, offset int) ([]domain.P2PLoan, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	loans := []domain.P2PLoan{}
	for _, loan := range d.loans {
		switch role {
		case portsrepo.RoleBorrower:
			if loan.BorrowerID != userID {
				continue
			}
		case portsrepo.RoleLender:
			if loan.LenderID != userID {
				continue
			}
		default:
			if loan.BorrowerID != userID && loan.LenderID != userID {
				continue
			}
		}
		loans = append(loans, cloneLoan(loan))
	}
	sort.Slice(loans, func(i, j int) bool {
		if !loans[i].CreatedAt.Equal(loans[j].CreatedAt) {
			return loans[i].CreatedAt.After(loans[j].CreatedAt)
		}
		return loans[i].LoanID > loans[j].LoanID
	})

	if offset >= len(loans) {
		return []domain.P2PLoan{}, nil
	}
	loans = loans[offset:]
	if len(loans) > limit {
		loans = loans[:limit]
	}
	return loans, nil
}

func (d *loanData) FindAutoDeductDue(ctx context.Context, now time.Time, maxRetries int, batchSize int) ([]domain.P2PLoan, error) {
	if batchSize <= 0 {
		batchSize = 50
	}

	due := []domain.P2PLoan{}
	for _, loan := range d.loans {
		if !loan.AutoDeduct {
			continue
		}
		switch loan.Status {
		case domain.LoanActive, domain.LoanFunded, domain.LoanApproved, domain.LoanOverdue:
		default:
			continue
		}
		if loan.RemainingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		if loan.NextPaymentDate == nil || loan.NextPaymentDate.After(now) {
			continue
		}
		if loan.NextAutoAttemptAt != nil && loan.NextAutoAttemptAt.After(now) {
			continue
		}
		if loan.AutoRetryCount >= maxRetries {
			continue
		}
		due = append(due, cloneLoan(loan))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextPaymentDate.Before(*due[j].NextPaymentDate)
	})
	if len(due) > batchSize {
		due = due[:batchSize]
	}
	return due, nil
}

func (d *loanData) SumPrincipalRequestedSince(ctx context.Context, borrowerID string, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, loan := range d.loans {
		if loan.BorrowerID == borrowerID && !loan.CreatedAt.Before(since) {
			total = total.Add(loan.Principal)
		}
	}
	return total, nil
}

func (d *loanData) FindLatestRequestAt(ctx context.Context, borrowerID string) (*time.Time, error) {
	var latest *time.Time
	for _, loan := range d.loans {
		if loan.BorrowerID != borrowerID {
			continue
		}
		createdAt := loan.CreatedAt
		if latest == nil || createdAt.After(*latest) {
			latest = &createdAt
		}
	}
	return latest, nil
}

type lockedLoanRepository struct {
	s *Store
}

var _ portsrepo.LoanRepository = (*lockedLoanRepository)(nil)

func (r *lockedLoanRepository) SaveLoan(ctx context.Context, loan domain.P2PLoan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).SaveLoan(ctx, loan)
}

func (r *lockedLoanRepository) UpdateLoan(ctx context.Context, loan domain.P2PLoan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).UpdateLoan(ctx, loan)
}

func (r *lockedLoanRepository) FindLoanByID(ctx context.Context, loanID string) (*domain.P2PLoan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).FindLoanByID(ctx, loanID)
}

func (r *lockedLoanRepository) ListLoansByUserID(ctx context.Context, userID string, role portsrepo.LoanRole, limit int, offset int) ([]domain.P2PLoan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).ListLoansByUserID(ctx, userID, role, limit, offset)
}

func (r *lockedLoanRepository) FindAutoDeductDue(ctx context.Context, now time.Time, maxRetries int, batchSize int) ([]domain.P2PLoan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).FindAutoDeductDue(ctx, now, maxRetries, batchSize)
}

func (r *lockedLoanRepository) SumPrincipalRequestedSince(ctx context.Context, borrowerID string, since time.Time) (decimal.Decimal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).SumPrincipalRequestedSince(ctx, borrowerID, since)
}

func (r *lockedLoanRepository) FindLatestRequestAt(ctx context.Context, borrowerID string) (*time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return (*loanData)(r.s.data).FindLatestRequestAt(ctx, borrowerID)
}
