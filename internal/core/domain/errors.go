package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists and overwrite was not requested.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	// Returned before any remote call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrPollTimeout indicates a wait gave up before the resource reached a terminal state.
	ErrPollTimeout = errors.New("poll timeout")

	// ErrUnsupportedService indicates a job reference names a service with no poller.
	ErrUnsupportedService = errors.New("unsupported service")
)

// Invalid wraps ErrInvalidInput with a formatted detail message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// JobErrorDetail is one entry of the structured error list attached to a
// failed job or operation.
type JobErrorDetail struct {
	Reason   string
	Message  string
	Location string
}

// JobError indicates a long-running resource reached a terminal state
// that reports failure. The resource itself was fetched successfully.
type JobError struct {
	// Reason is the machine-readable failure code.
	Reason string

	// Message is the human-readable failure description.
	Message string

	// Location identifies where the failure happened (a table, a field, a zone).
	Location string

	// Errors holds every sub-error the service reported, in server order.
	Errors []JobErrorDetail
}

// Error implements the error interface.
func (e *JobError) Error() string {
	var b strings.Builder
	b.WriteString("job failed")
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Location != "" {
		b.WriteString(" in ")
		b.WriteString(e.Location)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %q", e.Message)
	}
	return b.String()
}

// IsJobError reports whether err is or wraps a *JobError.
func IsJobError(err error) bool {
	var je *JobError
	return errors.As(err, &je)
}

// TransportError indicates an HTTP or network failure that survived the
// retry budget, or a status code that is never retried.
type TransportError struct {
	// Op names the remote call, e.g. "bigquery.jobs.get".
	Op string

	// StatusCode is the HTTP status, or 0 for network failures.
	StatusCode int

	// Attempts is the number of times the call was tried.
	Attempts int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d after %d attempt(s): %v", e.Op, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s: after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
