package google

import (
	"context"
	"time"

	"github.com/googleapis/gax-go/v2"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// RetryConfig holds the retry budget applied to every remote call.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the first pause between attempts.
	InitialBackoff time.Duration

	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the pause after each retry.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfigFromSettings(domain.DefaultAppSettings().Retry)
}

// RetryConfigFromSettings converts persisted retry settings.
func RetryConfigFromSettings(s domain.RetrySettings) RetryConfig {
	return RetryConfig{
		MaxRetries:        s.MaxRetries,
		InitialBackoff:    s.InitialBackoff,
		MaxBackoff:        s.MaxBackoff,
		BackoffMultiplier: 2.0,
	}
}

// Retryer runs remote calls under a retry budget and a rate limiter.
// A Retryer is safe for concurrent use; each call gets its own backoff state.
type Retryer struct {
	config  RetryConfig
	limiter *RateLimiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryer creates a retryer. limiter may be nil to disable rate limiting.
func NewRetryer(config RetryConfig, limiter *RateLimiter) *Retryer {
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 2.0
	}
	return &Retryer{
		config:  config,
		limiter: limiter,
		sleep:   gax.Sleep,
	}
}

// Config returns the retry configuration.
func (r *Retryer) Config() RetryConfig {
	return r.config
}

// Call invokes fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. Failures surface as *domain.TransportError.
func Call[T any](ctx context.Context, r *Retryer, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	log := logger.With("retry")
	backoff := gax.Backoff{
		Initial:    r.config.InitialBackoff,
		Max:        r.config.MaxBackoff,
		Multiplier: r.config.BackoffMultiplier,
	}

	maxAttempts := r.config.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			requestsTotal.WithLabelValues(op, "ok").Inc()
			if attempt > 1 {
				log.Debug().Str("op", op).Int("attempt", attempt).Msg("call succeeded after retry")
			}
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			requestsTotal.WithLabelValues(op, "cancelled").Inc()
			return zero, ctxErr
		}

		if !IsRetryable(err) {
			requestsTotal.WithLabelValues(op, "error").Inc()
			return zero, NewTransportError(op, attempt, err)
		}

		if attempt >= maxAttempts {
			requestsTotal.WithLabelValues(op, "error").Inc()
			retryExhaustedTotal.WithLabelValues(op).Inc()
			log.Warn().Str("op", op).Int("attempts", attempt).Err(err).Msg("retry budget spent")
			return zero, NewTransportError(op, attempt, err)
		}

		if IsRateLimited(err) && r.limiter != nil {
			if after := RetryAfter(err); after > 0 {
				r.limiter.RecordRateLimitError(after)
			}
		}

		pause := backoff.Pause()
		retryAttemptsTotal.WithLabelValues(op).Inc()
		log.Debug().
			Str("op", op).
			Int("attempt", attempt).
			Int("status", StatusCode(err)).
			Dur("backoff", pause).
			Msg("retrying call after backoff")

		if err := r.sleep(ctx, pause); err != nil {
			requestsTotal.WithLabelValues(op, "cancelled").Inc()
			return zero, err
		}
	}
}

// Do is Call for operations that return only an error.
func Do(ctx context.Context, r *Retryer, op string, fn func(ctx context.Context) error) error {
	_, err := Call(ctx, r, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
