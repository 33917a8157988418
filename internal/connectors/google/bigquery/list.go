package bigquery

import (
	"context"
	"time"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// Job states accepted by ListJobs.
const (
	StateDone    = "done"
	StatePending = "pending"
	StateRunning = "running"
)

// ListProjects lists the projects the caller can see.
func (c *Client) ListProjects(opts domain.ListOptions[*bq.ProjectListProjects]) *services.Iterator[*bq.ProjectListProjects] {
	return services.List(google.Pager(c.retryer, "bigquery.projects.list",
		func(ctx context.Context, token string) (*bq.ProjectList, error) {
			call := c.svc.Projects.List().Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *bq.ProjectList) ([]*bq.ProjectListProjects, string) {
			return resp.Projects, resp.NextPageToken
		},
	), opts)
}

// JobQuery selects which jobs ListJobs returns.
type JobQuery struct {
	ProjectID string

	// States limits the listing to done, pending or running jobs.
	States []string

	// AllUsers includes jobs submitted by other users.
	AllUsers bool
}

// ListJobs lists jobs in a project, most recent first.
func (c *Client) ListJobs(q JobQuery, opts domain.ListOptions[*bq.JobListJobs]) *services.Iterator[*bq.JobListJobs] {
	return services.List(google.Pager(c.retryer, "bigquery.jobs.list",
		func(ctx context.Context, token string) (*bq.JobList, error) {
			call := c.svc.Jobs.List(q.ProjectID).AllUsers(q.AllUsers).Projection("full").Context(ctx)
			if len(q.States) > 0 {
				call = call.StateFilter(q.States...)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *bq.JobList) ([]*bq.JobListJobs, string) {
			return resp.Jobs, resp.NextPageToken
		},
	), opts)
}

// CreatedBefore returns a Break predicate stopping a job listing at the first
// job created before t. Jobs are listed newest first, so nothing after that
// job can be newer.
func CreatedBefore(t time.Time) func(*bq.JobListJobs) bool {
	cutoff := t.UnixMilli()
	return func(j *bq.JobListJobs) bool {
		return j.Statistics != nil && j.Statistics.CreationTime > 0 && j.Statistics.CreationTime < cutoff
	}
}

// ListDatasets lists the datasets in a project.
func (c *Client) ListDatasets(projectID string, all bool, opts domain.ListOptions[*bq.DatasetListDatasets]) *services.Iterator[*bq.DatasetListDatasets] {
	return services.List(google.Pager(c.retryer, "bigquery.datasets.list",
		func(ctx context.Context, token string) (*bq.DatasetList, error) {
			call := c.svc.Datasets.List(projectID).All(all).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *bq.DatasetList) ([]*bq.DatasetListDatasets, string) {
			return resp.Datasets, resp.NextPageToken
		},
	), opts)
}

// ListTables lists the tables and views in a dataset.
func (c *Client) ListTables(projectID, datasetID string, opts domain.ListOptions[*bq.TableListTables]) *services.Iterator[*bq.TableListTables] {
	return services.List(google.Pager(c.retryer, "bigquery.tables.list",
		func(ctx context.Context, token string) (*bq.TableList, error) {
			call := c.svc.Tables.List(projectID, datasetID).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *bq.TableList) ([]*bq.TableListTables, string) {
			return resp.Tables, resp.NextPageToken
		},
	), opts)
}
