package services

import (
	"context"

	"github.com/aigoflow/proof-service/internal/models"
)

// MaxBatchSize bounds one batch submission. Proof generation is expensive
// enough that large batches belong in repeated calls, not one request.
const MaxBatchSize = 5

// BatchRequest is an all-or-nothing group of proof submissions.
type BatchRequest struct {
	Requests []ProveRequest `json:"requests"`
}

type BatchResult struct {
	Count   int           `json:"count"`
	Results []ProveResult `json:"results"`
}

// ProveBatch validates every request before submitting any: a single
// invalid item rejects the whole batch and no receipt is created.
func (s *ProveService) ProveBatch(ctx context.Context, batch *BatchRequest) (*BatchResult, error) {
	n := len(batch.Requests)
	if n == 0 {
		return nil, models.Invalid("batch must contain at least 1 request")
	}
	if n > MaxBatchSize {
		return nil, models.Invalid("batch size %d exceeds maximum of %d", n, MaxBatchSize)
	}

	for i := range batch.Requests {
		if err := s.Validate(&batch.Requests[i]); err != nil {
			return nil, models.Invalid("request %d: %v", i, err)
		}
	}

	results := make([]ProveResult, 0, n)
	for i := range batch.Requests {
		res, err := s.Prove(ctx, &batch.Requests[i])
		if err != nil {
			// Submission can still fail after validation (store or queue
			// trouble); earlier receipts in the batch are already live.
			return nil, err
		}
		results = append(results, *res)
	}
	return &BatchResult{Count: n, Results: results}, nil
}
