package cli

import (
	"context"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// mockSettingsService implements driving.SettingsService in memory.
type mockSettingsService struct {
	settings domain.AppSettings
	saved    int
	err      error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = *s
	m.saved++
	return nil
}

func (m *mockSettingsService) SetProject(project string) error {
	m.settings.Project = project
	return m.err
}

func (m *mockSettingsService) SetDataprocRegion(region string) error {
	m.settings.DataprocRegion = region
	return m.err
}

func (m *mockSettingsService) SetPoll(interval, timeout time.Duration) error {
	m.settings.Poll = domain.PollSettings{Interval: interval, Timeout: timeout}
	return m.err
}

func (m *mockSettingsService) SetMaxRetries(n int) error {
	m.settings.Retry.MaxRetries = n
	return m.err
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// mockJobTracker implements driving.JobTracker.
type mockJobTracker struct {
	jobs     []domain.TrackedJob
	tracked  []domain.JobRef
	forgot   []domain.JobRef
	status   domain.JobStatus
	outcomes []domain.Outcome[domain.JobRef, domain.JobStatus]
	err      error
}

func (m *mockJobTracker) Track(_ context.Context, ref domain.JobRef) error {
	m.tracked = append(m.tracked, ref)
	return m.err
}

func (m *mockJobTracker) List(context.Context) ([]domain.TrackedJob, error) {
	return m.jobs, m.err
}

func (m *mockJobTracker) Status(_ context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	s := m.status
	s.Ref = ref
	return s, m.err
}

func (m *mockJobTracker) WaitPending(context.Context) ([]domain.Outcome[domain.JobRef, domain.JobStatus], error) {
	return m.outcomes, m.err
}

func (m *mockJobTracker) Forget(_ context.Context, ref domain.JobRef) error {
	m.forgot = append(m.forgot, ref)
	return m.err
}

// mockRawLister implements driving.RawLister.
type mockRawLister struct {
	records []domain.Record
	got     domain.RawListRequest
	err     error
}

func (m *mockRawLister) ListRaw(_ context.Context, req domain.RawListRequest) ([]domain.Record, error) {
	m.got = req
	return m.records, m.err
}
