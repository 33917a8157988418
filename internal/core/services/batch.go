package services

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// WaitAll waits on each reference in order and captures every outcome.
// One failure never prevents the remaining references from being waited on.
// The result has exactly one entry per input, in input order.
func (w *Waiter[R, P]) WaitAll(ctx context.Context, refs []R) []domain.Outcome[R, P] {
	outcomes := make([]domain.Outcome[R, P], 0, len(refs))
	for i, ref := range refs {
		payload, err := w.Wait(ctx, ref)
		if err != nil {
			logger.Warn("wait %d/%d failed: %v", i+1, len(refs), err)
		}
		outcomes = append(outcomes, domain.Outcome[R, P]{
			Ref:     ref,
			Payload: payload,
			Err:     err,
		})
	}
	return outcomes
}
