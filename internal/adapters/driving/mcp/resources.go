package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for gcpkit resources.
	uriScheme = "gcpkit://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing tracked jobs.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "jobs",
		Name:        "jobs",
		Description: "Long-running jobs recorded for later waiting",
		MIMEType:    "application/json",
	}, s.handleJobsResource)

	// Template for a live status snapshot of one job.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "jobs/{service}/{project}/{id}",
		Name:        "job-status",
		Description: "Current status of a tracked job; the id is path-escaped",
		MIMEType:    "application/json",
	}, s.handleJobStatusResource)
}

// handleJobsResource returns every tracked job.
func (s *Server) handleJobsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	jobs, err := s.ports.Jobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}

	type jobInfo struct {
		Ref         string `json:"ref"`
		State       string `json:"state"`
		Message     string `json:"message,omitempty"`
		SubmittedAt string `json:"submitted_at"`
	}

	infos := make([]jobInfo, len(jobs))
	for i, job := range jobs {
		infos[i] = jobInfo{
			Ref:         job.Ref.String(),
			State:       string(job.State),
			Message:     job.Message,
			SubmittedAt: job.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	return jsonContents(req.Params.URI, infos)
}

// handleJobStatusResource fetches a fresh snapshot of one tracked job.
func (s *Server) handleJobStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	service, project, id, ok := extractJobKey(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	jobs, err := s.ports.Jobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	var ref domain.JobRef
	for _, job := range jobs {
		if string(job.Ref.Service) == service && job.Ref.ProjectID == project && job.Ref.ID == id {
			ref = job.Ref
			break
		}
	}
	if ref.ID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	status, err := s.ports.Jobs.Status(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("polling %s: %w", ref, err)
	}

	info := struct {
		Ref     string `json:"ref"`
		State   string `json:"state"`
		Done    bool   `json:"done"`
		Error   string `json:"error,omitempty"`
		Summary string `json:"summary,omitempty"`
	}{
		Ref:     ref.String(),
		State:   status.State,
		Done:    status.Done,
		Summary: status.Summary,
	}
	if status.Failure != nil {
		info.Error = status.Failure.Error()
	}

	return jsonContents(req.Params.URI, info)
}

func jsonContents(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// JobURI returns the status resource URI of a job.
func JobURI(ref domain.JobRef) string {
	return uriScheme + "jobs/" + string(ref.Service) + "/" + url.PathEscape(ref.ProjectID) + "/" + url.PathEscape(ref.ID)
}

// extractJobKey parses a URI like gcpkit://jobs/{service}/{project}/{id}.
func extractJobKey(uri string) (service, project, id string, ok bool) {
	const prefix = uriScheme + "jobs/"

	if !strings.HasPrefix(uri, prefix) {
		return "", "", "", false
	}

	parts := strings.Split(strings.TrimPrefix(uri, prefix), "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	project, err := url.PathUnescape(parts[1])
	if err != nil {
		return "", "", "", false
	}
	id, err = url.PathUnescape(parts[2])
	if err != nil || parts[0] == "" || project == "" || id == "" {
		return "", "", "", false
	}
	return parts[0], project, id, true
}
