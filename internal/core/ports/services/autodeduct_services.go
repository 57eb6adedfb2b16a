package services

import (
	"context"

	"github.com/stashpal/stashpal_backend/internal/dto"
)

// AutoDeductSvcFacade is the batch entry point the scheduler trigger invokes on
// a fixed interval. A batch never aborts on a per-loan failure; the summary
// carries per-loan errors for observability.
type AutoDeductSvcFacade interface {
	RunBatch(ctx context.Context) (*dto.AutoDeductSummary, error)
}
