package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// Common Google API errors.
// Sentinels that have a domain equivalent wrap it, so callers can test
// either errors.Is(err, google.ErrNotFound) or errors.Is(err, domain.ErrNotFound).
var (
	// ErrUnauthorized indicates invalid or expired credentials.
	ErrUnauthorized = errors.New("google: unauthorised (invalid credentials)")

	// ErrForbidden indicates insufficient permissions.
	ErrForbidden = errors.New("google: forbidden (insufficient permissions)")

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = fmt.Errorf("google: resource %w", domain.ErrNotFound)

	// ErrConflict indicates the resource already exists (409).
	ErrConflict = fmt.Errorf("google: resource %w", domain.ErrAlreadyExists)

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = fmt.Errorf("google: %w", domain.ErrRateLimited)

	// ErrQuotaExceeded indicates the API quota was exceeded.
	ErrQuotaExceeded = errors.New("google: quota exceeded")

	// ErrServerError indicates a 5xx response.
	ErrServerError = errors.New("google: server error")
)

// Error reasons Google reports on 403 responses that are really rate limits.
const (
	reasonRateLimitExceeded     = "rateLimitExceeded"
	reasonUserRateLimitExceeded = "userRateLimitExceeded"
	reasonQuotaExceeded         = "quotaExceeded"
)

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden returns true if the error indicates insufficient permissions.
func IsForbidden(err error) bool {
	if errors.Is(err, ErrForbidden) {
		return true
	}
	return StatusCode(err) == http.StatusForbidden && !hasReason(err, reasonRateLimitExceeded, reasonUserRateLimitExceeded)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	return StatusCode(err) == http.StatusNotFound
}

// IsConflict returns true if the error indicates the resource already exists.
func IsConflict(err error) bool {
	if errors.Is(err, ErrConflict) {
		return true
	}
	return StatusCode(err) == http.StatusConflict
}

// IsRateLimited returns true if the error indicates rate limiting.
// Google reports some rate limits as 403 with a rateLimitExceeded reason.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	switch StatusCode(err) {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return hasReason(err, reasonRateLimitExceeded, reasonUserRateLimitExceeded)
	default:
		return false
	}
}

// IsRetryable returns true if a call that failed with err may succeed when repeated.
// Rate limits, 5xx responses and network failures are retryable. Other HTTP
// statuses and context cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) || errors.Is(err, domain.ErrInvalidInput) || domain.IsJobError(err) {
		return false
	}
	if IsRateLimited(err) {
		return true
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code >= http.StatusInternalServerError
	}

	// Anything without an HTTP status is a network-level failure.
	return true
}

// permanentError marks a failure that repeating the call cannot fix,
// such as an undecodable response body.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var terr *domain.TransportError
	if errors.As(err, &terr) {
		return terr.StatusCode
	}
	return 0
}

// RetryAfter returns the Retry-After delay in seconds carried by err, or 0.
func RetryAfter(err error) int {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	n, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil || n < 0 {
		return 0
	}
	return n
}

func hasReason(err error, reasons ...string) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, item := range gerr.Errors {
		for _, r := range reasons {
			if item.Reason == r {
				return true
			}
		}
	}
	return false
}

// WrapError converts a Google API error to a more specific error.
// The original *googleapi.Error stays reachable through errors.As.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	var sentinel error
	switch {
	case gerr.Code == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case IsRateLimited(err):
		sentinel = ErrRateLimited
	case gerr.Code == http.StatusForbidden && hasReason(err, reasonQuotaExceeded):
		sentinel = ErrQuotaExceeded
	case gerr.Code == http.StatusForbidden:
		sentinel = ErrForbidden
	case gerr.Code == http.StatusNotFound:
		sentinel = ErrNotFound
	case gerr.Code == http.StatusConflict:
		sentinel = ErrConflict
	case gerr.Code >= http.StatusInternalServerError:
		sentinel = ErrServerError
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// NewTransportError builds the error surfaced once a call is given up on.
func NewTransportError(op string, attempts int, err error) *domain.TransportError {
	return &domain.TransportError{
		Op:         op,
		StatusCode: StatusCode(err),
		Attempts:   attempts,
		Err:        WrapError(err),
	}
}
