package mcp

import (
	"context"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// mockRawLister is a mock implementation of driving.RawLister.
type mockRawLister struct {
	records []domain.Record
	err     error
	got     domain.RawListRequest
}

func (m *mockRawLister) ListRaw(_ context.Context, req domain.RawListRequest) ([]domain.Record, error) {
	m.got = req
	return m.records, m.err
}

// mockJobTracker is a mock implementation of driving.JobTracker.
type mockJobTracker struct {
	jobs     []domain.TrackedJob
	tracked  []domain.JobRef
	status   domain.JobStatus
	polled   domain.JobRef
	outcomes []domain.Outcome[domain.JobRef, domain.JobStatus]
	err      error
}

func (m *mockJobTracker) Track(_ context.Context, ref domain.JobRef) error {
	if m.err != nil {
		return m.err
	}
	m.tracked = append(m.tracked, ref)
	return nil
}

func (m *mockJobTracker) List(_ context.Context) ([]domain.TrackedJob, error) {
	return m.jobs, m.err
}

func (m *mockJobTracker) Status(_ context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	m.polled = ref
	return m.status, m.err
}

func (m *mockJobTracker) WaitPending(_ context.Context) ([]domain.Outcome[domain.JobRef, domain.JobStatus], error) {
	return m.outcomes, m.err
}

func (m *mockJobTracker) Forget(_ context.Context, _ domain.JobRef) error {
	return m.err
}
