package dataproc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/dataproc/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Job states.
const (
	JobStateDone      = "DONE"
	JobStateError     = "ERROR"
	JobStateCancelled = "CANCELLED"
)

// Job state matchers accepted by ListJobs.
const (
	MatchAll       = "ALL"
	MatchActive    = "ACTIVE"
	MatchNonActive = "NON_ACTIVE"
)

// JobRef identifies a job.
type JobRef struct {
	ProjectID string
	JobID     string
}

// String renders "project:jobId".
func (r JobRef) String() string {
	return r.ProjectID + ":" + r.JobID
}

func jobState(j *dataproc.Job) string {
	if j == nil || j.Status == nil {
		return ""
	}
	return j.Status.State
}

func jobDone(j *dataproc.Job) bool {
	switch jobState(j) {
	case JobStateDone, JobStateError, JobStateCancelled:
		return true
	}
	return false
}

func jobError(j *dataproc.Job) *domain.JobError {
	state := jobState(j)
	if state != JobStateError && state != JobStateCancelled {
		return nil
	}
	jerr := &domain.JobError{Reason: state, Message: j.Status.Details}
	if j.Reference != nil {
		jerr.Location = j.Reference.JobId
	}
	return jerr
}

// JobQuery selects jobs to list.
type JobQuery struct {
	ProjectID string
	// ClusterName limits the listing to one cluster. Empty lists every cluster.
	ClusterName string
	// StateMatcher is ALL, ACTIVE or NON_ACTIVE. Empty means ACTIVE.
	StateMatcher string
	Filter       string
}

// ListJobs lists jobs in the bound region.
func (c *Client) ListJobs(q JobQuery, opts domain.ListOptions[*dataproc.Job]) *services.Iterator[*dataproc.Job] {
	matcher := q.StateMatcher
	if matcher == "" {
		matcher = MatchActive
	}
	return services.List(google.Pager(c.retryer, "dataproc.jobs.list",
		func(ctx context.Context, token string) (*dataproc.ListJobsResponse, error) {
			call := c.svc.Projects.Regions.Jobs.List(q.ProjectID, c.region).JobStateMatcher(matcher).Context(ctx)
			if q.ClusterName != "" {
				call = call.ClusterName(q.ClusterName)
			}
			if q.Filter != "" {
				call = call.Filter(q.Filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *dataproc.ListJobsResponse) ([]*dataproc.Job, string) {
			return resp.Jobs, resp.NextPageToken
		},
	), opts)
}

// GetJob reads a job once.
func (c *Client) GetJob(ctx context.Context, projectID, jobID string) (*dataproc.Job, error) {
	return c.getJobRef(ctx, JobRef{ProjectID: projectID, JobID: jobID})
}

func (c *Client) getJobRef(ctx context.Context, ref JobRef) (*dataproc.Job, error) {
	if ref.ProjectID == "" || ref.JobID == "" {
		return nil, domain.Invalid("dataproc: project and job id are required")
	}
	return google.Call(ctx, c.retryer, "dataproc.jobs.get", func(ctx context.Context) (*dataproc.Job, error) {
		return c.svc.Projects.Regions.Jobs.Get(ref.ProjectID, c.region, ref.JobID).Context(ctx).Do()
	})
}

// WaitJob polls a job until it is DONE, ERROR or CANCELLED. ERROR and
// CANCELLED are returned together with a *domain.JobError.
func (c *Client) WaitJob(ctx context.Context, ref JobRef) (*dataproc.Job, error) {
	return c.jobs.Wait(ctx, ref)
}

// WaitJobs waits on each job in order and reports one outcome per reference.
func (c *Client) WaitJobs(ctx context.Context, refs []JobRef) []domain.Outcome[JobRef, *dataproc.Job] {
	return c.jobs.WaitAll(ctx, refs)
}

// SubmitOptions are shared by Spark and PySpark submissions.
type SubmitOptions struct {
	Args        []string
	JarURIs     []string
	FileURIs    []string
	ArchiveURIs []string
	Properties  map[string]string

	// Async returns the submitted job without waiting.
	Async bool
}

func (o SubmitOptions) validate() error {
	if err := validateURIs("jar", o.JarURIs); err != nil {
		return err
	}
	if err := validateURIs("file", o.FileURIs); err != nil {
		return err
	}
	if err := validateURIs("archive", o.ArchiveURIs); err != nil {
		return err
	}
	for k := range o.Properties {
		if strings.TrimSpace(k) == "" {
			return domain.Invalid("dataproc: property names must not be empty")
		}
	}
	return nil
}

func validateURIs(kind string, uris []string) error {
	for _, u := range uris {
		if !strings.Contains(u, "://") {
			return domain.Invalid("dataproc: %s URI %q is not an HCFS URI", kind, u)
		}
	}
	return nil
}

// SubmitSparkJob runs mainClass on a cluster.
func (c *Client) SubmitSparkJob(ctx context.Context, projectID, cluster, mainClass string, opts SubmitOptions) (*dataproc.Job, error) {
	if mainClass == "" {
		return nil, domain.Invalid("dataproc: spark main class is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	job := &dataproc.Job{SparkJob: &dataproc.SparkJob{
		MainClass:   mainClass,
		Args:        opts.Args,
		JarFileUris: opts.JarURIs,
		FileUris:    opts.FileURIs,
		ArchiveUris: opts.ArchiveURIs,
		Properties:  opts.Properties,
	}}
	return c.submit(ctx, projectID, cluster, job, opts.Async)
}

// SubmitPySparkJob runs the Python driver at mainPyURI on a cluster.
func (c *Client) SubmitPySparkJob(ctx context.Context, projectID, cluster, mainPyURI string, pyURIs []string, opts SubmitOptions) (*dataproc.Job, error) {
	if err := validateURIs("python", append([]string{mainPyURI}, pyURIs...)); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	job := &dataproc.Job{PysparkJob: &dataproc.PySparkJob{
		MainPythonFileUri: mainPyURI,
		Args:              opts.Args,
		PythonFileUris:    pyURIs,
		JarFileUris:       opts.JarURIs,
		FileUris:          opts.FileURIs,
		ArchiveUris:       opts.ArchiveURIs,
		Properties:        opts.Properties,
	}}
	return c.submit(ctx, projectID, cluster, job, opts.Async)
}

func (c *Client) submit(ctx context.Context, projectID, cluster string, job *dataproc.Job, async bool) (*dataproc.Job, error) {
	if err := requireCluster(projectID, cluster); err != nil {
		return nil, err
	}
	job.Placement = &dataproc.JobPlacement{ClusterName: cluster}
	// The request id makes retried submissions idempotent.
	req := &dataproc.SubmitJobRequest{Job: job, RequestId: uuid.NewString()}
	submitted, err := google.Call(ctx, c.retryer, "dataproc.jobs.submit", func(ctx context.Context) (*dataproc.Job, error) {
		return c.svc.Projects.Regions.Jobs.Submit(projectID, c.region, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	if submitted.Reference == nil {
		return nil, fmt.Errorf("dataproc: submitted job has no reference")
	}
	logger.Debug("dataproc: submitted job %s:%s", submitted.Reference.ProjectId, submitted.Reference.JobId)
	if async {
		return submitted, nil
	}
	return c.WaitJob(ctx, JobRef{ProjectID: submitted.Reference.ProjectId, JobID: submitted.Reference.JobId})
}

// JobSummary describes a job in one line, e.g.
// "[Dataproc] SparkJob (proj:job-1) DONE (0 Minutes 42 Seconds)".
func JobSummary(j *dataproc.Job) string {
	if j == nil {
		return "[Dataproc] unknown job"
	}
	id := ""
	if j.Reference != nil {
		id = j.Reference.ProjectId + ":" + j.Reference.JobId
	}
	s := fmt.Sprintf("[Dataproc] %s (%s) %s", jobType(j), id, jobState(j))
	if j.Status != nil && len(j.StatusHistory) > 0 {
		if d, ok := elapsed(j.StatusHistory[0].StateStartTime, j.Status.StateStartTime); ok {
			s += " (" + google.Elapsed(d) + ")"
		}
	}
	return s
}

func jobType(j *dataproc.Job) string {
	switch {
	case j.SparkJob != nil:
		return "SparkJob"
	case j.PysparkJob != nil:
		return "PysparkJob"
	case j.HadoopJob != nil:
		return "HadoopJob"
	case j.HiveJob != nil:
		return "HiveJob"
	case j.PigJob != nil:
		return "PigJob"
	case j.SparkSqlJob != nil:
		return "SparkSqlJob"
	}
	return "Job"
}

func elapsed(from, to string) (time.Duration, bool) {
	start, err := time.Parse(time.RFC3339Nano, from)
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(time.RFC3339Nano, to)
	if err != nil {
		return 0, false
	}
	return end.Sub(start), true
}

// TrackedJobRef converts a job reference for the tracker.
func (c *Client) TrackedJobRef(ref JobRef) domain.JobRef {
	return domain.JobRef{
		ID:        ref.JobID,
		Service:   domain.ServiceDataprocJob,
		ProjectID: ref.ProjectID,
		Location:  c.region,
	}
}

// JobPoller reports job status to the tracker.
func (c *Client) JobPoller() driven.JobPoller {
	return jobPoller{c}
}

type jobPoller struct{ c *Client }

func (jobPoller) Service() domain.Service {
	return domain.ServiceDataprocJob
}

func (jobPoller) DefaultInterval() time.Duration {
	return DefaultJobPollInterval
}

func (p jobPoller) PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	job, err := p.c.GetJob(ctx, ref.ProjectID, ref.ID)
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	status := domain.JobStatus{Ref: ref, State: jobState(job), Done: jobDone(job)}
	if status.Done {
		status.Failure = jobError(job)
		status.Summary = JobSummary(job)
	}
	return status, nil
}
