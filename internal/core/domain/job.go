package domain

import (
	"errors"
	"time"
)

// Service identifies which Google API owns a long-running resource.
type Service string

// Services with pollable long-running resources.
const (
	ServiceBigQuery          Service = "bigquery"
	ServiceCompute           Service = "compute"
	ServiceDataprocOperation Service = "dataproc-operation"
	ServiceDataprocJob       Service = "dataproc-job"
)

// IsValid returns true if the service is recognised.
func (s Service) IsValid() bool {
	switch s {
	case ServiceBigQuery, ServiceCompute, ServiceDataprocOperation, ServiceDataprocJob:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s Service) String() string {
	return string(s)
}

// JobRef identifies a long-running resource: a BigQuery job, a Compute
// zone or region operation, a Dataproc operation or a Dataproc job.
type JobRef struct {
	// ID is the server-side identifier (job id, operation name).
	ID string

	// Service selects the poller that understands this reference.
	Service Service

	// ProjectID is the owning project.
	ProjectID string

	// Location is the zone, region or BigQuery location. May be empty.
	Location string
}

// String returns a compact human-readable form.
func (r JobRef) String() string {
	s := string(r.Service) + ":" + r.ProjectID
	if r.Location != "" {
		s += "/" + r.Location
	}
	return s + "/" + r.ID
}

// JobState is the coarse lifecycle state of a tracked job.
type JobState string

// Tracked job states.
const (
	JobStatePending JobState = "pending"
	JobStateDone    JobState = "done"
	JobStateFailed  JobState = "failed"
)

// JobStatus is a single observation of a long-running resource.
type JobStatus struct {
	Ref JobRef

	// State is the raw service-specific state string (DONE, RUNNING, ERROR).
	State string

	// Done is true once the resource reached a terminal state.
	Done bool

	// Failure is set when the terminal state reports an error.
	Failure *JobError

	// Summary is a one-line human-readable description.
	Summary string
}

// TrackedJob is a job reference recorded for later waiting.
type TrackedJob struct {
	Ref         JobRef
	State       JobState
	Message     string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Outcome is the result of waiting on one reference in a batch.
// Exactly one of Payload or Err is meaningful, except for a JobError,
// which is returned together with the terminal payload.
type Outcome[R, P any] struct {
	Ref     R
	Payload P
	Err     error
}

// OK returns true if the wait finished without error.
func (o Outcome[R, P]) OK() bool {
	return o.Err == nil
}

// ClassifyOutcome maps a batch wait outcome onto the tracked job state and
// the message to record. Failed jobs, unknown services and vanished jobs are
// final. Any other error leaves the job pending so a later wait retries it.
func ClassifyOutcome(o Outcome[JobRef, JobStatus]) (JobState, string) {
	switch {
	case o.Err == nil:
		return JobStateDone, o.Payload.Summary
	case IsJobError(o.Err), errors.Is(o.Err, ErrUnsupportedService), errors.Is(o.Err, ErrNotFound):
		return JobStateFailed, o.Err.Error()
	default:
		return JobStatePending, o.Err.Error()
	}
}
