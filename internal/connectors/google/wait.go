package google

import (
	"context"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// WaitConfig controls how service clients poll long-running resources.
type WaitConfig struct {
	// Interval overrides the resource's default poll interval when positive.
	Interval time.Duration

	// Timeout bounds each wait. Zero waits indefinitely.
	Timeout time.Duration

	// Sleep replaces the pause between polls. Nil uses a context-aware timer.
	Sleep services.SleepFunc
}

// WaitConfigFromSettings converts persisted poll settings.
func WaitConfigFromSettings(s domain.PollSettings) WaitConfig {
	return WaitConfig{Interval: s.Interval, Timeout: s.Timeout}
}

// IntervalOr returns the configured interval, or def if none is set.
func (c WaitConfig) IntervalOr(def time.Duration) time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return def
}

// NewWaiter builds a waiter for a resource type whose default poll interval is def.
// Every status fetch is counted under resource.
func NewWaiter[R, P any](
	cfg WaitConfig,
	resource string,
	def time.Duration,
	fetch func(ctx context.Context, ref R) (P, error),
	isTerminal func(P) bool,
	errorOf func(P) *domain.JobError,
) *services.Waiter[R, P] {
	var opts []services.WaiterOption[R, P]
	if cfg.Sleep != nil {
		opts = append(opts, services.WithSleep[R, P](cfg.Sleep))
	}
	return services.NewWaiter(
		driven.ResourceFetcherFunc[R, P](func(ctx context.Context, ref R) (P, error) {
			pollsTotal.WithLabelValues(resource).Inc()
			return fetch(ctx, ref)
		}),
		services.PollPolicy[P]{
			IsTerminal: isTerminal,
			ErrorOf:    errorOf,
			Interval:   cfg.IntervalOr(def),
			Timeout:    cfg.Timeout,
		},
		opts...,
	)
}
