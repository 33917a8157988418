package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
// Used when no data directory is available and in tests.
type JobStore struct {
	mu   sync.RWMutex
	seq  int
	jobs map[domain.JobRef]storedJob
}

type storedJob struct {
	seq int
	job domain.TrackedJob
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[domain.JobRef]storedJob),
	}
}

// Save stores or updates a job. Updates keep the original submission position.
func (s *JobStore) Save(_ context.Context, job domain.TrackedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.jobs[job.Ref]
	if !ok {
		s.seq++
		existing.seq = s.seq
	}
	existing.job = job
	s.jobs[job.Ref] = existing
	return nil
}

// Get retrieves a job by reference.
func (s *JobStore) Get(_ context.Context, ref domain.JobRef) (*domain.TrackedJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.jobs[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	job := stored.job
	return &job, nil
}

// List returns all jobs in submission order.
func (s *JobStore) List(_ context.Context) ([]domain.TrackedJob, error) {
	return s.filter(func(domain.TrackedJob) bool { return true }), nil
}

// ListPending returns pending jobs in submission order.
func (s *JobStore) ListPending(_ context.Context) ([]domain.TrackedJob, error) {
	return s.filter(func(j domain.TrackedJob) bool { return j.State == domain.JobStatePending }), nil
}

// Delete removes a job.
func (s *JobStore) Delete(_ context.Context, ref domain.JobRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, ref)
	return nil
}

func (s *JobStore) filter(keep func(domain.TrackedJob) bool) []domain.TrackedJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := make([]storedJob, 0, len(s.jobs))
	for _, sj := range s.jobs {
		if keep(sj.job) {
			stored = append(stored, sj)
		}
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].seq < stored[j].seq })

	jobs := make([]domain.TrackedJob, len(stored))
	for i, sj := range stored {
		jobs[i] = sj.job
	}
	return jobs
}
