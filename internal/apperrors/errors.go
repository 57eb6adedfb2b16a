// Package apperrors defines sentinel errors shared across service and
// repository layers. Callers classify failures with errors.Is and map them to
// transport responses at the handler layer.
package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("requested resource not found")

	// ErrValidation indicates invalid input data.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate indicates a uniqueness conflict on create.
	ErrDuplicate = errors.New("resource already exists")

	// ErrForbidden indicates the acting user is not allowed to perform the
	// operation on the target resource.
	ErrForbidden = errors.New("operation not permitted")

	// ErrConflict indicates the operation is not valid in the resource's
	// current state.
	ErrConflict = errors.New("resource state conflict")

	// ErrInsufficientFunds indicates an account balance cannot cover a
	// requested debit. Returned by the conditional decrement primitive.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNoAccountsAvailable indicates the user has no active account that can
	// receive or provide funds for the operation.
	ErrNoAccountsAvailable = errors.New("no accounts available")

	// ErrPolicyViolation indicates a lending policy check failed (borrowing
	// cap, cool-off window).
	ErrPolicyViolation = errors.New("policy violation")

	// ErrInsufficientLendingCapacity indicates a lender's permitted accounts
	// cannot fund a requested escrow hold. Matched by errors.Is against
	// InsufficientCapacityError.
	ErrInsufficientLendingCapacity = errors.New("insufficient lending capacity")
)

// InsufficientCapacityError reports a failed escrow hold with the amounts the
// caller needs to present a useful message: what was required, what the pull
// plan could raise, and the lender's aggregate available balance.
type InsufficientCapacityError struct {
	TotalAvailable decimal.Decimal
	Required       decimal.Decimal
	Allowed        decimal.Decimal
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("%v: required %s, available %s, allowed %s",
		ErrInsufficientLendingCapacity,
		e.Required.StringFixed(2), e.TotalAvailable.StringFixed(2), e.Allowed.StringFixed(2))
}

// Is lets errors.Is(err, ErrInsufficientLendingCapacity) match this error.
func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientLendingCapacity
}
