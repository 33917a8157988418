package services

import (
	"context"
	"iter"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Iterator lazily walks a cursor-paginated listing.
//
// Pages are fetched only when the buffered page is exhausted and the caller
// asks for another item, so at most one page is held in memory. An Iterator
// is single-use: once it reports done or an error it stays that way.
// It is not safe for concurrent use.
type Iterator[T any] struct {
	fetcher driven.PageFetcher[T]
	opts    domain.ListOptions[T]

	buf     []T
	pos     int
	token   string
	started bool
	done    bool
	err     error

	yielded int
	pages   int
}

// List returns an iterator over every item the fetcher produces, bounded by opts.
// No request is made until the first call to Next.
func List[T any](fetcher driven.PageFetcher[T], opts domain.ListOptions[T]) *Iterator[T] {
	return &Iterator[T]{
		fetcher: fetcher,
		opts:    opts,
	}
}

// Next returns the next item. The boolean is false when the listing is
// exhausted, the MaxResults cap was reached, the Break predicate fired, or an
// error occurred. Errors are sticky: every later call returns the same error.
func (it *Iterator[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.err != nil {
		return zero, false, it.err
	}

	for !it.done {
		if it.opts.Limited() && it.yielded >= it.opts.MaxResults {
			it.finish()
			break
		}

		if it.pos >= len(it.buf) {
			if it.started && it.token == "" {
				it.finish()
				break
			}
			if err := it.fetch(ctx); err != nil {
				return zero, false, err
			}
			continue
		}

		item := it.buf[it.pos]
		it.pos++

		if it.opts.Break != nil && it.opts.Break(item) {
			logger.Debug("listing stopped by break condition after %d item(s)", it.yielded)
			it.finish()
			break
		}
		if it.opts.Filter != nil && !it.opts.Filter(item) {
			continue
		}

		it.yielded++
		return item, true, nil
	}

	return zero, false, nil
}

// fetch loads the next page into the buffer.
func (it *Iterator[T]) fetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		it.fail(err)
		return err
	}

	page, err := it.fetcher.FetchPage(ctx, it.token)
	if err != nil {
		it.fail(err)
		return err
	}

	it.started = true
	it.pages++
	it.buf = page.Items
	it.pos = 0
	it.token = page.NextPageToken
	logger.Debug("fetched page %d with %d item(s), more=%t", it.pages, len(page.Items), !page.Last())
	return nil
}

func (it *Iterator[T]) finish() {
	it.done = true
	it.buf = nil
	it.pos = 0
}

func (it *Iterator[T]) fail(err error) {
	it.err = err
	it.finish()
}

// All returns a range-over-func sequence of the remaining items.
// On failure the sequence yields a single zero item paired with the error
// and then ends.
func (it *Iterator[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			item, ok, err := it.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains the iterator. On error it returns the items gathered so far
// together with the error.
func (it *Iterator[T]) Collect(ctx context.Context) ([]T, error) {
	var items []T
	for item, err := range it.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Err returns the error that stopped the iterator, if any.
func (it *Iterator[T]) Err() error {
	return it.err
}

// Yielded returns the number of items returned so far.
func (it *Iterator[T]) Yielded() int {
	return it.yielded
}

// Pages returns the number of pages fetched so far.
func (it *Iterator[T]) Pages() int {
	return it.pages
}

// Map returns a fetcher whose pages are converted item by item.
// Useful to expose a typed listing as records or summaries.
func Map[T, U any](fetcher driven.PageFetcher[T], fn func(T) U) driven.PageFetcher[U] {
	return driven.PageFetcherFunc[U](func(ctx context.Context, token string) (domain.Page[U], error) {
		page, err := fetcher.FetchPage(ctx, token)
		if err != nil {
			return domain.Page[U]{}, err
		}
		out := domain.Page[U]{
			Items:         make([]U, len(page.Items)),
			NextPageToken: page.NextPageToken,
		}
		for i, item := range page.Items {
			out.Items[i] = fn(item)
		}
		return out, nil
	})
}
