package driving

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// JobTracker records long-running jobs submitted without waiting and
// waits on them later as a batch.
type JobTracker interface {
	// Track records a submitted job as pending.
	Track(ctx context.Context, ref domain.JobRef) error

	// List returns every tracked job.
	List(ctx context.Context) ([]domain.TrackedJob, error)

	// Status fetches a fresh snapshot for one job without waiting.
	Status(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error)

	// WaitPending waits on every pending job in submission order and records
	// each outcome. One failing job never stops the others.
	WaitPending(ctx context.Context) ([]domain.Outcome[domain.JobRef, domain.JobStatus], error)

	// Forget removes a job from tracking.
	Forget(ctx context.Context, ref domain.JobRef) error
}
