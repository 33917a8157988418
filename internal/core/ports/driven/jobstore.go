package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// JobStore persists job references submitted without waiting.
type JobStore interface {
	// Save records a job. Saving an existing reference overwrites it.
	Save(ctx context.Context, job domain.TrackedJob) error

	// Get retrieves a job by reference.
	// Returns domain.ErrNotFound if the job has never been saved.
	Get(ctx context.Context, ref domain.JobRef) (*domain.TrackedJob, error)

	// List returns all jobs in submission order.
	List(ctx context.Context) ([]domain.TrackedJob, error)

	// ListPending returns jobs still in the pending state, in submission order.
	ListPending(ctx context.Context) ([]domain.TrackedJob, error)

	// Delete removes a job. Deleting an unknown job is not an error.
	Delete(ctx context.Context, ref domain.JobRef) error
}

// JobPoller reads a single status snapshot of a long-running resource.
// Each implementation understands references of one domain.Service.
type JobPoller interface {
	// Service returns the service whose references this poller handles.
	Service() domain.Service

	// DefaultInterval is the pause between status reads when none is configured.
	DefaultInterval() time.Duration

	// PollJob fetches the current status. It never waits.
	PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error)
}
