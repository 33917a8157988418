package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driving"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Ensure JobTracker implements the interface.
var _ driving.JobTracker = (*JobTracker)(nil)

// DefaultTrackerInterval is the poll interval used when none is configured.
const DefaultTrackerInterval = time.Second

// JobTracker records submitted jobs and waits on them as a batch.
type JobTracker struct {
	store   driven.JobStore
	pollers map[domain.Service]driven.JobPoller
	poll    domain.PollSettings
	sleep   SleepFunc
	now     func() time.Time
}

// NewJobTracker creates a tracker. Pollers are keyed by the service they report.
func NewJobTracker(store driven.JobStore, poll domain.PollSettings, pollers ...driven.JobPoller) *JobTracker {
	t := &JobTracker{
		store:   store,
		pollers: make(map[domain.Service]driven.JobPoller, len(pollers)),
		poll:    poll,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, p := range pollers {
		if p != nil {
			t.pollers[p.Service()] = p
		}
	}
	return t
}

// Track records a submitted job as pending.
func (t *JobTracker) Track(ctx context.Context, ref domain.JobRef) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	if _, ok := t.pollers[ref.Service]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedService, ref.Service)
	}

	job := domain.TrackedJob{
		Ref:         ref,
		State:       domain.JobStatePending,
		SubmittedAt: t.now().UTC(),
	}
	if err := t.store.Save(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	logger.Info("tracking %s", ref)
	return nil
}

// List returns every tracked job.
func (t *JobTracker) List(ctx context.Context) ([]domain.TrackedJob, error) {
	return t.store.List(ctx)
}

// Status fetches one snapshot without waiting.
func (t *JobTracker) Status(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	return t.fetch(ctx, ref)
}

// WaitPending waits on every pending job in submission order.
//
// A job that finishes is marked done; one that finishes with a failure, or
// whose service has no poller, is marked failed. Transport errors and
// timeouts leave the job pending so a later call can retry it.
func (t *JobTracker) WaitPending(ctx context.Context) ([]domain.Outcome[domain.JobRef, domain.JobStatus], error) {
	pending, err := t.store.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	logger.Section("Waiting on tracked jobs")
	refs := make([]domain.JobRef, len(pending))
	for i, job := range pending {
		refs[i] = job.Ref
	}

	// Jobs are waited on per service so each polls at its own interval.
	// Outcomes keep the submission order.
	groups := make(map[domain.Service][]int)
	var order []domain.Service
	for i, ref := range refs {
		if _, ok := groups[ref.Service]; !ok {
			order = append(order, ref.Service)
		}
		groups[ref.Service] = append(groups[ref.Service], i)
	}

	outcomes := make([]domain.Outcome[domain.JobRef, domain.JobStatus], len(refs))
	for _, service := range order {
		idx := groups[service]
		batch := make([]domain.JobRef, len(idx))
		for j, i := range idx {
			batch[j] = refs[i]
		}
		for j, outcome := range t.waiter(service).WaitAll(ctx, batch) {
			outcomes[idx[j]] = outcome
		}
	}

	for i, outcome := range outcomes {
		job := pending[i]
		state, message := domain.ClassifyOutcome(outcome)
		if state == domain.JobStatePending {
			logger.Warn("%s still pending: %s", job.Ref, message)
			continue
		}
		job.State = state
		job.Message = message
		job.FinishedAt = t.now().UTC()
		if err := t.store.Save(ctx, job); err != nil {
			return outcomes, fmt.Errorf("save job %s: %w", job.Ref, err)
		}
	}
	return outcomes, nil
}

// waiter builds the batch waiter for one service's jobs.
func (t *JobTracker) waiter(service domain.Service) *Waiter[domain.JobRef, domain.JobStatus] {
	return NewWaiter(
		driven.ResourceFetcherFunc[domain.JobRef, domain.JobStatus](t.fetch),
		PollPolicy[domain.JobStatus]{
			IsTerminal: func(s domain.JobStatus) bool { return s.Done },
			ErrorOf:    func(s domain.JobStatus) *domain.JobError { return s.Failure },
			Interval:   t.interval(service),
			Timeout:    t.poll.Timeout,
		},
		WithSleep[domain.JobRef, domain.JobStatus](t.sleep),
		WithClock[domain.JobRef, domain.JobStatus](t.now),
	)
}

// interval is the configured poll interval, else the poller's default,
// else DefaultTrackerInterval.
func (t *JobTracker) interval(service domain.Service) time.Duration {
	if t.poll.Interval > 0 {
		return t.poll.Interval
	}
	if p, ok := t.pollers[service]; ok {
		if d := p.DefaultInterval(); d > 0 {
			return d
		}
	}
	return DefaultTrackerInterval
}

// Forget removes a job from tracking.
func (t *JobTracker) Forget(ctx context.Context, ref domain.JobRef) error {
	return t.store.Delete(ctx, ref)
}

// fetch dispatches a status read to the poller for ref's service.
func (t *JobTracker) fetch(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	poller, ok := t.pollers[ref.Service]
	if !ok {
		return domain.JobStatus{Ref: ref}, fmt.Errorf("%w: %s", domain.ErrUnsupportedService, ref.Service)
	}
	return poller.PollJob(ctx, ref)
}

func validateRef(ref domain.JobRef) error {
	switch {
	case ref.ID == "":
		return domain.Invalid("job id is required")
	case ref.ProjectID == "":
		return domain.Invalid("project id is required")
	case !ref.Service.IsValid():
		return domain.Invalid("unknown service %q", ref.Service)
	}
	return nil
}
