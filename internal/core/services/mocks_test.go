package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// --- Mock implementations for engine testing ---

// mockPageFetcher serves canned pages keyed by the token that requests them.
type mockPageFetcher struct {
	mu     sync.Mutex
	pages  map[string]domain.Page[string]
	errs   map[string]error
	tokens []string
}

func newMockPageFetcher() *mockPageFetcher {
	return &mockPageFetcher{
		pages: make(map[string]domain.Page[string]),
		errs:  make(map[string]error),
	}
}

// page registers the page returned for token. The first page uses "".
func (m *mockPageFetcher) page(token string, next string, items ...string) *mockPageFetcher {
	m.pages[token] = domain.Page[string]{Items: items, NextPageToken: next}
	return m
}

func (m *mockPageFetcher) failOn(token string, err error) *mockPageFetcher {
	m.errs[token] = err
	return m
}

func (m *mockPageFetcher) FetchPage(_ context.Context, token string) (domain.Page[string], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if err, ok := m.errs[token]; ok {
		return domain.Page[string]{}, err
	}
	page, ok := m.pages[token]
	if !ok {
		return domain.Page[string]{}, errors.New("unexpected token " + token)
	}
	return page, nil
}

func (m *mockPageFetcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// fakeJob is a minimal long-running resource payload.
type fakeJob struct {
	ID     string
	State  string
	Reason string
	Where  string
	Msg    string
}

var fakePolicy = PollPolicy[fakeJob]{
	IsTerminal: func(j fakeJob) bool { return j.State == "DONE" },
	ErrorOf: func(j fakeJob) *domain.JobError {
		if j.Reason == "" {
			return nil
		}
		return &domain.JobError{Reason: j.Reason, Location: j.Where, Message: j.Msg}
	},
	Interval: 250 * time.Millisecond,
}

// mockResourceFetcher returns a scripted sequence of payloads per reference.
type mockResourceFetcher struct {
	mu      sync.Mutex
	scripts map[string][]fakeJob
	errs    map[string]error
	calls   map[string]int
}

func newMockResourceFetcher() *mockResourceFetcher {
	return &mockResourceFetcher{
		scripts: make(map[string][]fakeJob),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (m *mockResourceFetcher) script(ref string, states ...fakeJob) *mockResourceFetcher {
	m.scripts[ref] = states
	return m
}

func (m *mockResourceFetcher) FetchResource(_ context.Context, ref string) (fakeJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[ref]
	m.calls[ref] = n + 1
	if err, ok := m.errs[ref]; ok {
		return fakeJob{}, err
	}
	script := m.scripts[ref]
	if len(script) == 0 {
		return fakeJob{}, errors.New("no script for " + ref)
	}
	if n >= len(script) {
		return script[len(script)-1], nil
	}
	return script[n], nil
}

func (m *mockResourceFetcher) callsFor(ref string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ref]
}

// recordingSleep records requested pauses without waiting.
type recordingSleep struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauses = append(r.pauses, d)
	return ctx.Err()
}

func (r *recordingSleep) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pauses)
}

// fakeClock advances only when told to.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockJobPoller implements driven.JobPoller with scripted statuses.
type mockJobPoller struct {
	service  domain.Service
	interval time.Duration
	mu       sync.Mutex
	statuses map[string][]domain.JobStatus
	errs     map[string]error
	calls    map[string]int
}

var _ driven.JobPoller = (*mockJobPoller)(nil)

func newMockJobPoller(service domain.Service) *mockJobPoller {
	return &mockJobPoller{
		service:  service,
		statuses: make(map[string][]domain.JobStatus),
		errs:     make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (m *mockJobPoller) Service() domain.Service {
	return m.service
}

func (m *mockJobPoller) DefaultInterval() time.Duration {
	return m.interval
}

func (m *mockJobPoller) PollJob(_ context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[ref.ID]
	m.calls[ref.ID] = n + 1
	if err, ok := m.errs[ref.ID]; ok {
		return domain.JobStatus{}, err
	}
	seq := m.statuses[ref.ID]
	if len(seq) == 0 {
		return domain.JobStatus{Ref: ref, State: "DONE", Done: true}, nil
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	status := seq[n]
	status.Ref = ref
	return status, nil
}

// mockConfigStore implements driven.ConfigStore in memory.
type mockConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
	setErr error
}

var _ driven.ConfigStore = (*mockConfigStore)(nil)

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	v, _ := m.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func (m *mockConfigStore) GetBool(key string) bool {
	v, _ := m.Get(key)
	b, _ := v.(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	v, _ := m.Get(key)
	s, _ := v.([]string)
	return s
}

func (m *mockConfigStore) Set(key string, value any) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error { return nil }
func (m *mockConfigStore) Load() error { return nil }
func (m *mockConfigStore) Path() string {
	return ":memory:"
}
