package bigquery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Ensure Client can report job status to the tracker.
var _ driven.JobPoller = (*Client)(nil)

// Write dispositions.
const (
	WriteTruncate = "WRITE_TRUNCATE"
	WriteAppend   = "WRITE_APPEND"
	WriteEmpty    = "WRITE_EMPTY"
)

const jobStateDone = "DONE"

func jobDone(j *bq.Job) bool {
	return j != nil && j.Status != nil && j.Status.State == jobStateDone
}

// jobError reads status.errorResult from a finished job.
func jobError(j *bq.Job) *domain.JobError {
	if j == nil || j.Status == nil || j.Status.ErrorResult == nil {
		return nil
	}
	res := j.Status.ErrorResult
	jerr := &domain.JobError{
		Reason:   res.Reason,
		Message:  res.Message,
		Location: res.Location,
	}
	for _, e := range j.Status.Errors {
		jerr.Errors = append(jerr.Errors, domain.JobErrorDetail{
			Reason:   e.Reason,
			Message:  e.Message,
			Location: e.Location,
		})
	}
	return jerr
}

// WaitJob polls a job until it is DONE. A job that finished with an
// errorResult is returned together with a *domain.JobError.
func (c *Client) WaitJob(ctx context.Context, ref *bq.JobReference) (*bq.Job, error) {
	return c.jobs.Wait(ctx, ref)
}

// WaitJobs waits on each job in order and reports one outcome per reference.
func (c *Client) WaitJobs(ctx context.Context, refs []*bq.JobReference) []domain.Outcome[*bq.JobReference, *bq.Job] {
	return c.jobs.WaitAll(ctx, refs)
}

// Service implements driven.JobPoller.
func (c *Client) Service() domain.Service {
	return domain.ServiceBigQuery
}

// DefaultInterval implements driven.JobPoller.
func (c *Client) DefaultInterval() time.Duration {
	return DefaultPollInterval
}

// PollJob implements driven.JobPoller with a single status read.
func (c *Client) PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	job, err := c.GetJob(ctx, ref.ProjectID, ref.ID, ref.Location)
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	status := domain.JobStatus{Ref: ref, Done: jobDone(job)}
	if job.Status != nil {
		status.State = job.Status.State
	}
	if status.Done {
		status.Failure = jobError(job)
		status.Summary = JobSummary(job, "")
	}
	return status, nil
}

// JobRef converts a job reference for the tracker.
func JobRef(ref *bq.JobReference) domain.JobRef {
	return domain.JobRef{
		ID:        ref.JobId,
		Service:   domain.ServiceBigQuery,
		ProjectID: ref.ProjectId,
		Location:  ref.Location,
	}
}

// newJobID returns a client-side job id. Retried inserts reuse it, so a
// submission that reached the server before a network failure is not run twice.
func newJobID() string {
	return "gcpkit_" + uuid.NewString()
}

// insertJob submits a job and, unless async, waits for it to finish.
func (c *Client) insertJob(ctx context.Context, projectID string, job *bq.Job, media []byte, async bool) (*bq.Job, error) {
	if job.JobReference == nil {
		job.JobReference = &bq.JobReference{ProjectId: projectID}
	}
	if job.JobReference.JobId == "" {
		job.JobReference.JobId = newJobID()
	}
	op := "bigquery.jobs.insert"
	inserted, err := google.Call(ctx, c.retryer, op, func(ctx context.Context) (*bq.Job, error) {
		call := c.svc.Jobs.Insert(projectID, job).Context(ctx)
		if media != nil {
			call = call.Media(bytes.NewReader(media), googleapi.ContentType("application/octet-stream"))
		}
		return call.Do()
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// An earlier attempt got through.
		inserted, err = c.getJobRef(ctx, job.JobReference)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("submitted bigquery job %s", inserted.Id)
	if async {
		return inserted, nil
	}
	return c.WaitJob(ctx, inserted.JobReference)
}

// LoadOptions configures a load job.
type LoadOptions struct {
	// SourceFormat is CSV (default), NEWLINE_DELIMITED_JSON, AVRO, PARQUET or ORC.
	SourceFormat string

	// SkipLeadingRows defaults to 1 for CSV and 0 otherwise.
	SkipLeadingRows *int64

	FieldDelimiter      string
	AllowQuotedNewlines bool

	// WriteDisposition defaults to WRITE_TRUNCATE.
	WriteDisposition string

	// Async returns the submitted job without waiting.
	Async bool
}

func (o LoadOptions) config(dest TableRef, schema []*bq.TableFieldSchema) *bq.JobConfigurationLoad {
	skip := int64(0)
	if o.SourceFormat == "" || o.SourceFormat == "CSV" {
		skip = 1
	}
	if o.SkipLeadingRows != nil {
		skip = *o.SkipLeadingRows
	}
	cfg := &bq.JobConfigurationLoad{
		DestinationTable:    dest.reference(),
		WriteDisposition:    orDefault(o.WriteDisposition, WriteTruncate),
		SourceFormat:        o.SourceFormat,
		SkipLeadingRows:     skip,
		FieldDelimiter:      o.FieldDelimiter,
		AllowQuotedNewlines: o.AllowQuotedNewlines,
	}
	if len(schema) > 0 {
		cfg.Schema = &bq.TableSchema{Fields: schema}
	}
	return cfg
}

// LoadFromGCS loads objects from Cloud Storage into a table.
func (c *Client) LoadFromGCS(ctx context.Context, dest TableRef, schema []*bq.TableFieldSchema, sourceURIs []string, opts LoadOptions) (*bq.Job, error) {
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	if len(sourceURIs) == 0 {
		return nil, domain.Invalid("at least one source uri is required")
	}
	load := opts.config(dest, schema)
	load.SourceUris = sourceURIs
	job := &bq.Job{
		JobReference:  &bq.JobReference{ProjectId: dest.ProjectID},
		Configuration: &bq.JobConfiguration{Load: load},
	}
	return c.insertJob(ctx, dest.ProjectID, job, nil, opts.Async)
}

// LoadFromBytes loads data uploaded with the request into a table.
func (c *Client) LoadFromBytes(ctx context.Context, dest TableRef, schema []*bq.TableFieldSchema, data []byte, opts LoadOptions) (*bq.Job, error) {
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	job := &bq.Job{
		JobReference:  &bq.JobReference{ProjectId: dest.ProjectID},
		Configuration: &bq.JobConfiguration{Load: opts.config(dest, schema)},
	}
	return c.insertJob(ctx, dest.ProjectID, job, data, opts.Async)
}

// ExportOptions configures an extract job.
type ExportOptions struct {
	DestinationFormat string
	Compression       string
	FieldDelimiter    string
	PrintHeader       *bool
	Async             bool
}

// ExportToGCS extracts a table to Cloud Storage.
func (c *Client) ExportToGCS(ctx context.Context, source TableRef, destURIs []string, opts ExportOptions) (*bq.Job, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if len(destURIs) == 0 {
		return nil, domain.Invalid("at least one destination uri is required")
	}
	job := &bq.Job{
		JobReference: &bq.JobReference{ProjectId: source.ProjectID},
		Configuration: &bq.JobConfiguration{Extract: &bq.JobConfigurationExtract{
			SourceTable:       source.reference(),
			DestinationUris:   destURIs,
			DestinationFormat: opts.DestinationFormat,
			Compression:       opts.Compression,
			FieldDelimiter:    opts.FieldDelimiter,
			PrintHeader:       opts.PrintHeader,
		}},
	}
	return c.insertJob(ctx, source.ProjectID, job, nil, opts.Async)
}

// CopyOptions configures a copy job.
type CopyOptions struct {
	WriteDisposition string
	Async            bool
}

// CopyTable copies one or more source tables into dest.
// Every source must name its project, dataset and table.
func (c *Client) CopyTable(ctx context.Context, sources []TableRef, dest TableRef, opts CopyOptions) (*bq.Job, error) {
	if len(sources) == 0 {
		return nil, domain.Invalid("at least one source table is required")
	}
	refs := make([]*bq.TableReference, len(sources))
	for i, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		refs[i] = src.reference()
	}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	job := &bq.Job{
		JobReference: &bq.JobReference{ProjectId: dest.ProjectID},
		Configuration: &bq.JobConfiguration{Copy: &bq.JobConfigurationTableCopy{
			DestinationTable: dest.reference(),
			SourceTables:     refs,
			WriteDisposition: orDefault(opts.WriteDisposition, WriteTruncate),
		}},
	}
	return c.insertJob(ctx, dest.ProjectID, job, nil, opts.Async)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
