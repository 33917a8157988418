package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// defaultMaxResults bounds list_resources when the caller sets no limit.
const defaultMaxResults = 100

// ListResourcesInput is the input schema for the list_resources tool.
type ListResourcesInput struct {
	Service    string            `json:"service" jsonschema:"API owning the collection: bigquery, storage, drive, gmail, compute or dataproc"`
	URL        string            `json:"url" jsonschema:"collection URL, absolute or relative to the service endpoint"`
	ItemsKey   string            `json:"items_key" jsonschema:"response field holding the items array"`
	TokenKey   string            `json:"token_key,omitempty" jsonschema:"response field holding the continuation token (default nextPageToken)"`
	TokenParam string            `json:"token_param,omitempty" jsonschema:"query parameter carrying the page token (default pageToken)"`
	Params     map[string]string `json:"params,omitempty" jsonschema:"fixed query parameters"`
	MaxResults int               `json:"max_results,omitempty" jsonschema:"maximum number of items to return (default 100)"`
}

// ListResourcesOutput is the output schema for the list_resources tool.
type ListResourcesOutput struct {
	Items []domain.Record `json:"items"`
	Count int             `json:"count"`
}

// TrackJobInput is the input schema for the track_job tool.
type TrackJobInput struct {
	Service   string `json:"service" jsonschema:"bigquery, compute, dataproc-operation or dataproc-job"`
	ProjectID string `json:"project_id" jsonschema:"owning project"`
	Location  string `json:"location,omitempty" jsonschema:"BigQuery location or zones/NAME, regions/NAME for compute"`
	ID        string `json:"id" jsonschema:"job id or operation name"`
}

// TrackJobOutput is the output schema for the track_job tool.
type TrackJobOutput struct {
	Ref string `json:"ref"`
}

// ListJobsInput is the input schema for the list_jobs tool.
type ListJobsInput struct {
	PendingOnly bool `json:"pending_only,omitempty" jsonschema:"only return jobs not yet waited on"`
}

// JobOutput describes one tracked job.
type JobOutput struct {
	Ref     string `json:"ref"`
	Service string `json:"service"`
	Project string `json:"project_id"`
	ID      string `json:"id"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// ListJobsOutput is the output schema for the list_jobs tool.
type ListJobsOutput struct {
	Jobs  []JobOutput `json:"jobs"`
	Count int         `json:"count"`
}

// WaitJobsInput is the input schema for the wait_jobs tool.
type WaitJobsInput struct{}

// WaitJobsOutput is the output schema for the wait_jobs tool.
type WaitJobsOutput struct {
	Results []JobOutput `json:"results"`
	Done    int         `json:"done"`
	Failed  int         `json:"failed"`
	Pending int         `json:"pending"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_resources",
		Description: "List any Google Cloud REST collection, following page tokens",
	}, s.handleListResources)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "track_job",
		Description: "Record a submitted long-running job for later waiting",
	}, s.handleTrackJob)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_jobs",
		Description: "List tracked long-running jobs",
	}, s.handleListJobs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "wait_jobs",
		Description: "Wait on every pending tracked job and report each outcome",
	}, s.handleWaitJobs)
}

// handleListResources handles the list_resources tool invocation.
func (s *Server) handleListResources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListResourcesInput,
) (*mcp.CallToolResult, ListResourcesOutput, error) {
	limit := input.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	req := domain.RawListRequest{
		Service:    input.Service,
		URL:        input.URL,
		Keys:       domain.PageKeys{Items: input.ItemsKey, Token: input.TokenKey},
		TokenParam: input.TokenParam,
		MaxResults: limit,
	}
	if len(input.Params) > 0 {
		req.Params = make(map[string][]string, len(input.Params))
		for k, v := range input.Params {
			req.Params[k] = []string{v}
		}
	}

	records, err := s.ports.Raw.ListRaw(ctx, req)
	if err != nil {
		return nil, ListResourcesOutput{}, fmt.Errorf("listing %s: %w", input.URL, err)
	}
	if records == nil {
		records = []domain.Record{}
	}
	return nil, ListResourcesOutput{Items: records, Count: len(records)}, nil
}

// handleTrackJob handles the track_job tool invocation.
func (s *Server) handleTrackJob(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TrackJobInput,
) (*mcp.CallToolResult, TrackJobOutput, error) {
	ref := domain.JobRef{
		ID:        input.ID,
		Service:   domain.Service(input.Service),
		ProjectID: input.ProjectID,
		Location:  input.Location,
	}
	if err := s.ports.Jobs.Track(ctx, ref); err != nil {
		return nil, TrackJobOutput{}, err
	}
	return nil, TrackJobOutput{Ref: ref.String()}, nil
}

// handleListJobs handles the list_jobs tool invocation.
func (s *Server) handleListJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListJobsInput,
) (*mcp.CallToolResult, ListJobsOutput, error) {
	jobs, err := s.ports.Jobs.List(ctx)
	if err != nil {
		return nil, ListJobsOutput{}, fmt.Errorf("listing jobs: %w", err)
	}

	output := ListJobsOutput{Jobs: make([]JobOutput, 0, len(jobs))}
	for _, job := range jobs {
		if input.PendingOnly && job.State != domain.JobStatePending {
			continue
		}
		output.Jobs = append(output.Jobs, jobOutput(job.Ref, job.State, job.Message))
	}
	output.Count = len(output.Jobs)
	return nil, output, nil
}

// handleWaitJobs handles the wait_jobs tool invocation.
func (s *Server) handleWaitJobs(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ WaitJobsInput,
) (*mcp.CallToolResult, WaitJobsOutput, error) {
	outcomes, err := s.ports.Jobs.WaitPending(ctx)
	if err != nil && outcomes == nil {
		return nil, WaitJobsOutput{}, fmt.Errorf("waiting on jobs: %w", err)
	}

	output := WaitJobsOutput{Results: make([]JobOutput, len(outcomes))}
	for i, o := range outcomes {
		state, message := domain.ClassifyOutcome(o)
		switch state {
		case domain.JobStateDone:
			output.Done++
		case domain.JobStateFailed:
			output.Failed++
		default:
			output.Pending++
		}
		output.Results[i] = jobOutput(o.Ref, state, message)
	}
	return nil, output, err
}

func jobOutput(ref domain.JobRef, state domain.JobState, message string) JobOutput {
	return JobOutput{
		Ref:     ref.String(),
		Service: string(ref.Service),
		Project: ref.ProjectID,
		ID:      ref.ID,
		State:   string(state),
		Message: message,
	}
}
