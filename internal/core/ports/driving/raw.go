package driving

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// RawLister lists arbitrary Google REST collections as raw JSON records.
type RawLister interface {
	// ListRaw follows continuation tokens until the collection is exhausted
	// or req.MaxResults records were collected.
	ListRaw(ctx context.Context, req domain.RawListRequest) ([]domain.Record, error)
}
