package driven

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// PageFetcher fetches one page of a cursor-paginated listing.
// Fixed request parameters are bound when the fetcher is constructed and
// never change between calls; only the page token varies.
type PageFetcher[T any] interface {
	// FetchPage returns the page addressed by pageToken.
	// An empty pageToken requests the first page.
	// Retryable transport failures are retried inside the implementation.
	FetchPage(ctx context.Context, pageToken string) (domain.Page[T], error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc[T any] func(ctx context.Context, pageToken string) (domain.Page[T], error)

// FetchPage calls f.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, pageToken string) (domain.Page[T], error) {
	return f(ctx, pageToken)
}

// ResourceFetcher fetches the current payload of a long-running resource.
type ResourceFetcher[R, P any] interface {
	FetchResource(ctx context.Context, ref R) (P, error)
}

// ResourceFetcherFunc adapts a function to ResourceFetcher.
type ResourceFetcherFunc[R, P any] func(ctx context.Context, ref R) (P, error)

// FetchResource calls f.
func (f ResourceFetcherFunc[R, P]) FetchResource(ctx context.Context, ref R) (P, error) {
	return f(ctx, ref)
}
