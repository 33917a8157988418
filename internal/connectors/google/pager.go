package google

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// Pager adapts a typed list call to driven.PageFetcher.
//
// call issues one request for pageToken (empty for the first page) with every
// other parameter already bound. extract pulls the items and the next token
// out of the response. Each request runs under the retryer as op.
func Pager[T, Resp any](
	r *Retryer,
	op string,
	call func(ctx context.Context, pageToken string) (Resp, error),
	extract func(Resp) ([]T, string),
) driven.PageFetcher[T] {
	return driven.PageFetcherFunc[T](func(ctx context.Context, pageToken string) (domain.Page[T], error) {
		resp, err := Call(ctx, r, op, func(ctx context.Context) (Resp, error) {
			return call(ctx, pageToken)
		})
		if err != nil {
			return domain.Page[T]{}, err
		}
		pagesFetchedTotal.WithLabelValues(op).Inc()
		items, next := extract(resp)
		return domain.Page[T]{Items: items, NextPageToken: next}, nil
	})
}
