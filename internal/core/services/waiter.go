package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// PollPolicy describes when a long-running resource is finished and how to
// read failure detail from its terminal payload.
type PollPolicy[P any] struct {
	// IsTerminal reports whether the payload is in a final state. Required.
	IsTerminal func(P) bool

	// ErrorOf extracts failure detail from a terminal payload.
	// Returns nil for success. May be nil if the resource cannot fail.
	ErrorOf func(P) *domain.JobError

	// Interval is the delay between a non-terminal fetch and the next one.
	Interval time.Duration

	// Timeout bounds the total wait. Zero waits indefinitely.
	Timeout time.Duration
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Waiter polls a resource until it reaches a terminal state.
type Waiter[R, P any] struct {
	fetcher driven.ResourceFetcher[R, P]
	policy  PollPolicy[P]
	sleep   SleepFunc
	now     func() time.Time
}

// WaiterOption configures a Waiter.
type WaiterOption[R, P any] func(*Waiter[R, P])

// WithSleep replaces the pause between polls.
func WithSleep[R, P any](sleep SleepFunc) WaiterOption[R, P] {
	return func(w *Waiter[R, P]) {
		w.sleep = sleep
	}
}

// WithClock replaces the clock used to enforce the timeout.
func WithClock[R, P any](now func() time.Time) WaiterOption[R, P] {
	return func(w *Waiter[R, P]) {
		w.now = now
	}
}

// NewWaiter creates a waiter that fetches through fetcher and stops per policy.
func NewWaiter[R, P any](fetcher driven.ResourceFetcher[R, P], policy PollPolicy[P], opts ...WaiterOption[R, P]) *Waiter[R, P] {
	w := &Waiter[R, P]{
		fetcher: fetcher,
		policy:  policy,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait fetches the resource until it is terminal and returns the terminal payload.
//
// If the terminal payload reports failure, the payload is returned together
// with a *domain.JobError. Fetch errors abort the wait and are returned
// unchanged. When a timeout is configured and the next poll would fall past
// it, Wait returns the last payload with domain.ErrPollTimeout.
func (w *Waiter[R, P]) Wait(ctx context.Context, ref R) (P, error) {
	var zero P
	if w.policy.IsTerminal == nil {
		return zero, domain.Invalid("poll policy has no terminal predicate")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	var deadline time.Time
	if w.policy.Timeout > 0 {
		deadline = w.now().Add(w.policy.Timeout)
	}

	for polls := 1; ; polls++ {
		payload, err := w.fetcher.FetchResource(ctx, ref)
		if err != nil {
			return zero, err
		}

		if w.policy.IsTerminal(payload) {
			logger.Debug("resource terminal after %d poll(s)", polls)
			if w.policy.ErrorOf != nil {
				if jobErr := w.policy.ErrorOf(payload); jobErr != nil {
					return payload, jobErr
				}
			}
			return payload, nil
		}

		if !deadline.IsZero() && w.now().Add(w.policy.Interval).After(deadline) {
			return payload, fmt.Errorf("%w: not terminal after %d poll(s) in %s", domain.ErrPollTimeout, polls, w.policy.Timeout)
		}

		if err := w.sleep(ctx, w.policy.Interval); err != nil {
			return payload, err
		}
	}
}

// sleepContext pauses for d, returning early with ctx.Err() if ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
