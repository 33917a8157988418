package bigquery

import (
	"context"
	"fmt"

	bq "google.golang.org/api/bigquery/v2"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// Row is one query result row, one value per column.
type Row = []any

// QueryResult holds the rows of a finished query job.
type QueryResult struct {
	// Job is the finished job resource.
	Job *bq.Job

	// Header names the result columns in schema order.
	Header []string

	// Rows holds the values read, excluding the header.
	Rows []Row

	// TotalRows is the row count the server reported for the result set.
	TotalRows uint64
}

// Summary describes the job in one line.
func (r *QueryResult) Summary(description string) string {
	return summarizeJob(r.Job, description, int64(r.TotalRows), true)
}

// QueryOptions configures a query job.
type QueryOptions struct {
	// UDFResourceURIs are gs:// URIs of JavaScript UDF sources.
	UDFResourceURIs []string

	// WriteDisposition defaults to WRITE_TRUNCATE.
	WriteDisposition string

	FlattenResults *bool
	UseLegacySQL   *bool

	// Async returns the submitted job without waiting. Ignored by queries
	// that return rows.
	Async bool
}

func (o QueryOptions) config(query string, dest TableRef) *bq.JobConfigurationQuery {
	cfg := &bq.JobConfigurationQuery{
		Query:             query,
		AllowLargeResults: true,
		DestinationTable:  dest.reference(),
		WriteDisposition:  orDefault(o.WriteDisposition, WriteTruncate),
		FlattenResults:    o.FlattenResults,
		UseLegacySql:      o.UseLegacySQL,
	}
	for _, uri := range o.UDFResourceURIs {
		cfg.UserDefinedFunctionResources = append(cfg.UserDefinedFunctionResources,
			&bq.UserDefinedFunctionResource{ResourceUri: uri})
	}
	return cfg
}

// SyncQuery runs a query without a destination table, waits for it and
// reads every result row.
func (c *Client) SyncQuery(ctx context.Context, projectID, query string) (*QueryResult, error) {
	if projectID == "" || query == "" {
		return nil, domain.Invalid("project and query are required")
	}
	resp, err := google.Call(ctx, c.retryer, "bigquery.jobs.query", func(ctx context.Context) (*bq.QueryResponse, error) {
		return c.svc.Jobs.Query(projectID, &bq.QueryRequest{Query: query, TimeoutMs: 0}).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	if resp.JobReference == nil {
		return nil, fmt.Errorf("bigquery.jobs.query: response has no job reference")
	}
	return c.finishQuery(ctx, resp.JobReference)
}

// AsyncQuery runs a query into a destination table, waits for it and reads
// every result row.
func (c *Client) AsyncQuery(ctx context.Context, projectID, query string, dest TableRef, opts QueryOptions) (*QueryResult, error) {
	if projectID == "" || query == "" {
		return nil, domain.Invalid("project and query are required")
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	job := &bq.Job{
		JobReference:  &bq.JobReference{ProjectId: projectID},
		Configuration: &bq.JobConfiguration{Query: opts.config(query, dest)},
	}
	inserted, err := c.insertJob(ctx, projectID, job, nil, true)
	if err != nil {
		return nil, err
	}
	return c.finishQuery(ctx, inserted.JobReference)
}

func (c *Client) finishQuery(ctx context.Context, ref *bq.JobReference) (*QueryResult, error) {
	job, err := c.WaitJob(ctx, ref)
	if err != nil {
		return &QueryResult{Job: job}, err
	}
	result, err := c.QueryResults(ctx, job.JobReference, domain.ListOptions[Row]{})
	if result != nil {
		result.Job = job
	}
	return result, err
}

// QueryResults reads the rows of a finished query job through the lister.
// The header comes from the schema of the first page.
func (c *Client) QueryResults(ctx context.Context, ref *bq.JobReference, opts domain.ListOptions[Row]) (*QueryResult, error) {
	if ref == nil || ref.ProjectId == "" || ref.JobId == "" {
		return nil, domain.Invalid("job reference is required")
	}
	pager := &rowPager{client: c, ref: ref}
	rows, err := services.List[Row](pager, opts).Collect(ctx)
	result := &QueryResult{
		Header:    pager.header(),
		Rows:      rows,
		TotalRows: pager.totalRows,
	}
	return result, err
}

// ResultRows returns a lazy iterator over result rows. The header and total
// row count are available from the returned pager after the first page.
func (c *Client) ResultRows(ref *bq.JobReference, opts domain.ListOptions[Row]) (*services.Iterator[Row], *ResultPager) {
	pager := &rowPager{client: c, ref: ref}
	return services.List[Row](pager, opts), &ResultPager{pager: pager}
}

// ResultPager exposes metadata gathered while paging query results.
type ResultPager struct {
	pager *rowPager
}

// Header returns the column names, or nil before the first page.
func (p *ResultPager) Header() []string { return p.pager.header() }

// TotalRows returns the row count the server reported.
func (p *ResultPager) TotalRows() uint64 { return p.pager.totalRows }

// rowPager pages through jobs.getQueryResults, which names its continuation
// token "pageToken" rather than "nextPageToken".
type rowPager struct {
	client    *Client
	ref       *bq.JobReference
	schema    *bq.TableSchema
	totalRows uint64
}

var _ driven.PageFetcher[Row] = (*rowPager)(nil)

func (p *rowPager) FetchPage(ctx context.Context, pageToken string) (domain.Page[Row], error) {
	resp, err := google.Call(ctx, p.client.retryer, "bigquery.jobs.getQueryResults", func(ctx context.Context) (*bq.GetQueryResultsResponse, error) {
		call := p.client.svc.Jobs.GetQueryResults(p.ref.ProjectId, p.ref.JobId).TimeoutMs(0).Context(ctx)
		if p.ref.Location != "" {
			call = call.Location(p.ref.Location)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		return domain.Page[Row]{}, err
	}

	if p.schema == nil && resp.Schema != nil {
		p.schema = resp.Schema
	}
	p.totalRows = resp.TotalRows

	rows := make([]Row, len(resp.Rows))
	for i, r := range resp.Rows {
		row := make(Row, len(r.F))
		for j, cell := range r.F {
			row[j] = cell.V
		}
		rows[i] = row
	}
	return domain.Page[Row]{Items: rows, NextPageToken: resp.PageToken}, nil
}

func (p *rowPager) header() []string {
	if p.schema == nil {
		return nil
	}
	names := make([]string, len(p.schema.Fields))
	for i, f := range p.schema.Fields {
		names[i] = f.Name
	}
	return names
}
