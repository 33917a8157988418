package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobColumns = `service, project_id, location, job_id, state, message, submitted_at, finished_at`

// Save stores or updates a job. Updates keep the original submission position.
func (s *jobStore) Save(ctx context.Context, job domain.TrackedJob) error {
	ref := job.Ref
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tracked_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service, project_id, location, job_id) DO UPDATE SET
			state = excluded.state,
			message = excluded.message,
			submitted_at = excluded.submitted_at,
			finished_at = excluded.finished_at
	`, string(ref.Service), ref.ProjectID, ref.Location, ref.ID,
		string(job.State), job.Message, nullTime(job.SubmittedAt), nullTime(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("saving job %s: %w", ref, err)
	}
	return nil
}

// Get retrieves a job by reference.
func (s *jobStore) Get(ctx context.Context, ref domain.JobRef) (*domain.TrackedJob, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+`
		FROM tracked_jobs
		WHERE service = ? AND project_id = ? AND location = ? AND job_id = ?
	`, string(ref.Service), ref.ProjectID, ref.Location, ref.ID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// List returns all jobs in submission order.
func (s *jobStore) List(ctx context.Context) ([]domain.TrackedJob, error) {
	return s.query(ctx, `SELECT `+jobColumns+` FROM tracked_jobs ORDER BY seq`)
}

// ListPending returns pending jobs in submission order.
func (s *jobStore) ListPending(ctx context.Context) ([]domain.TrackedJob, error) {
	return s.query(ctx, `SELECT `+jobColumns+` FROM tracked_jobs WHERE state = ? ORDER BY seq`,
		string(domain.JobStatePending))
}

// Delete removes a job.
func (s *jobStore) Delete(ctx context.Context, ref domain.JobRef) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM tracked_jobs
		WHERE service = ? AND project_id = ? AND location = ? AND job_id = ?
	`, string(ref.Service), ref.ProjectID, ref.Location, ref.ID)
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", ref, err)
	}
	return nil
}

func (s *jobStore) query(ctx context.Context, q string, args ...any) ([]domain.TrackedJob, error) {
	rows, err := s.store.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.TrackedJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.TrackedJob, error) {
	var job domain.TrackedJob
	var service, state string
	var submittedAt, finishedAt sql.NullTime
	err := row.Scan(&service, &job.Ref.ProjectID, &job.Ref.Location, &job.Ref.ID,
		&state, &job.Message, &submittedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Ref.Service = domain.Service(service)
	job.State = domain.JobState(state)
	if submittedAt.Valid {
		job.SubmittedAt = submittedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = finishedAt.Time
	}
	return &job, nil
}
