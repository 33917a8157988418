package google

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// newTestRetryer returns a retryer whose pauses are recorded instead of slept.
func newTestRetryer(maxRetries int, limiter *RateLimiter) (*Retryer, *[]time.Duration) {
	r := NewRetryer(RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
	}, limiter)
	var pauses []time.Duration
	r.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}
	return r, &pauses
}

func TestCall_SucceedsFirstTime(t *testing.T) {
	r, pauses := newTestRetryer(3, nil)

	calls := 0
	got, err := Call(context.Background(), r, "test.ok", func(context.Context) (string, error) {
		calls++
		return "done", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *pauses)
}

func TestCall_RetriesTransientThenSucceeds(t *testing.T) {
	r, pauses := newTestRetryer(3, nil)

	calls := 0
	got, err := Call(context.Background(), r, "test.transient", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, apiError(http.StatusServiceUnavailable)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Len(t, *pauses, 2)
	for _, p := range *pauses {
		assert.LessOrEqual(t, p, time.Second)
	}
}

func TestCall_BudgetExhausted(t *testing.T) {
	r, pauses := newTestRetryer(2, nil)

	calls := 0
	_, err := Call(context.Background(), r, "test.exhausted", func(context.Context) (int, error) {
		calls++
		return 0, apiError(http.StatusInternalServerError)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *pauses, 2)

	var terr *domain.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "test.exhausted", terr.Op)
	assert.Equal(t, 500, terr.StatusCode)
	assert.Equal(t, 3, terr.Attempts)
	assert.ErrorIs(t, err, ErrServerError)
}

func TestCall_NonRetryableFailsImmediately(t *testing.T) {
	r, pauses := newTestRetryer(5, nil)

	calls := 0
	_, err := Call(context.Background(), r, "test.notfound", func(context.Context) (int, error) {
		calls++
		return 0, apiError(http.StatusNotFound)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *pauses)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.True(t, domain.IsTransportError(err))
}

func TestCall_ZeroRetries(t *testing.T) {
	r, _ := newTestRetryer(0, nil)

	calls := 0
	_, err := Call(context.Background(), r, "test.once", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestCall_ContextCancelledReturnsRawError(t *testing.T) {
	r, _ := newTestRetryer(3, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := Call(ctx, r, "test.cancel", func(context.Context) (int, error) {
		cancel()
		return 0, apiError(http.StatusServiceUnavailable)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.IsTransportError(err))
}

func TestCall_RateLimitRecordsRetryAfter(t *testing.T) {
	limiter := NewRateLimiterWithConfig(RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000})
	r, _ := newTestRetryer(1, limiter)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Call(ctx, r, "test.ratelimit", func(context.Context) (int, error) {
		calls++
		gerr := apiError(http.StatusTooManyRequests)
		gerr.Header = http.Header{"Retry-After": []string{"30"}}
		return 0, gerr
	})

	// The second attempt waits out the Retry-After window and hits the deadline.
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
	assert.False(t, limiter.Allow())
}

func TestDo(t *testing.T) {
	r, _ := newTestRetryer(1, nil)

	calls := 0
	err := Do(context.Background(), r, "test.do", func(context.Context) error {
		calls++
		if calls == 1 {
			return apiError(http.StatusBadGateway)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryConfigFromSettings(t *testing.T) {
	cfg := RetryConfigFromSettings(domain.RetrySettings{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	})

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.InitialBackoff)
	assert.Equal(t, 10*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 3, DefaultRetryConfig().MaxRetries)
}
