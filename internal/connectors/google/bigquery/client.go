// Package bigquery wraps the BigQuery v2 REST API: listings, job submission,
// job waiting and query result paging.
package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// DefaultPollInterval is the pause between job status reads.
const DefaultPollInterval = time.Second

// Client is a BigQuery API client.
type Client struct {
	svc     *bq.Service
	retryer *google.Retryer
	jobs    *services.Waiter[*bq.JobReference, *bq.Job]
}

// NewClient wraps an existing service.
func NewClient(svc *bq.Service, retryer *google.Retryer, wait google.WaitConfig) *Client {
	c := &Client{
		svc:     svc,
		retryer: retryer,
	}
	c.jobs = google.NewWaiter(wait, "bigquery.job", DefaultPollInterval, c.getJobRef, jobDone, jobError)
	return c
}

// Open creates a client from connection settings.
func Open(ctx context.Context, cfg google.Config, retry google.RetryConfig, wait google.WaitConfig) (*Client, error) {
	svc, err := google.NewBigQueryService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create bigquery service: %w", err)
	}
	retryer := google.NewRetryer(retry, google.NewRateLimiter(google.ServiceBigQuery))
	return NewClient(svc, retryer, wait), nil
}

// API returns the underlying API service.
func (c *Client) API() *bq.Service {
	return c.svc
}

// TableRef addresses a table or view.
type TableRef struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// ParseTableRef parses "project:dataset.table" or "project.dataset.table".
func ParseTableRef(s string) (TableRef, error) {
	var ref TableRef
	project, rest, ok := strings.Cut(s, ":")
	if !ok {
		project, rest, ok = strings.Cut(s, ".")
	}
	if !ok {
		return ref, domain.Invalid("table %q is not project:dataset.table", s)
	}
	dataset, table, ok := strings.Cut(rest, ".")
	if !ok {
		return ref, domain.Invalid("table %q is not project:dataset.table", s)
	}
	ref = TableRef{ProjectID: project, DatasetID: dataset, TableID: table}
	return ref, ref.Validate()
}

// Validate returns an error if any part of the reference is missing.
func (r TableRef) Validate() error {
	switch {
	case r.ProjectID == "":
		return domain.Invalid("table reference has no projectId")
	case r.DatasetID == "":
		return domain.Invalid("table reference has no datasetId")
	case r.TableID == "":
		return domain.Invalid("table reference has no tableId")
	}
	return nil
}

// String returns "project:dataset.table".
func (r TableRef) String() string {
	return r.ProjectID + ":" + r.DatasetID + "." + r.TableID
}

func (r TableRef) reference() *bq.TableReference {
	return &bq.TableReference{ProjectId: r.ProjectID, DatasetId: r.DatasetID, TableId: r.TableID}
}

// GetTable returns the table or view resource.
func (c *Client) GetTable(ctx context.Context, ref TableRef) (*bq.Table, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	return google.Call(ctx, c.retryer, "bigquery.tables.get", func(ctx context.Context) (*bq.Table, error) {
		return c.svc.Tables.Get(ref.ProjectID, ref.DatasetID, ref.TableID).Context(ctx).Do()
	})
}

// DeleteTable deletes a table or view.
func (c *Client) DeleteTable(ctx context.Context, ref TableRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	return google.Do(ctx, c.retryer, "bigquery.tables.delete", func(ctx context.Context) error {
		return c.svc.Tables.Delete(ref.ProjectID, ref.DatasetID, ref.TableID).Context(ctx).Do()
	})
}

// GetJob returns the job resource.
func (c *Client) GetJob(ctx context.Context, projectID, jobID, location string) (*bq.Job, error) {
	if projectID == "" || jobID == "" {
		return nil, domain.Invalid("project and job id are required")
	}
	return google.Call(ctx, c.retryer, "bigquery.jobs.get", func(ctx context.Context) (*bq.Job, error) {
		call := c.svc.Jobs.Get(projectID, jobID).Context(ctx)
		if location != "" {
			call = call.Location(location)
		}
		return call.Do()
	})
}

func (c *Client) getJobRef(ctx context.Context, ref *bq.JobReference) (*bq.Job, error) {
	if ref == nil {
		return nil, domain.Invalid("job reference is required")
	}
	return c.GetJob(ctx, ref.ProjectId, ref.JobId, ref.Location)
}
