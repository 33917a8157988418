package dataproc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/dataproc/v1"
	"google.golang.org/grpc/codes"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

const stateDone = "DONE"

// OperationsName is the collection name operations are listed under.
func (c *Client) OperationsName(projectID string) string {
	return "projects/" + projectID + "/regions/" + c.region + "/operations"
}

// ListOperations lists the project's operations in the bound region.
func (c *Client) ListOperations(projectID, filter string, opts domain.ListOptions[*dataproc.Operation]) *services.Iterator[*dataproc.Operation] {
	name := c.OperationsName(projectID)
	return services.List(google.Pager(c.retryer, "dataproc.operations.list",
		func(ctx context.Context, token string) (*dataproc.ListOperationsResponse, error) {
			call := c.svc.Projects.Regions.Operations.List(name).Context(ctx)
			if filter != "" {
				call = call.Filter(filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *dataproc.ListOperationsResponse) ([]*dataproc.Operation, string) {
			return resp.Operations, resp.NextPageToken
		},
	), opts)
}

// GetOperation reads an operation once by its full resource name.
func (c *Client) GetOperation(ctx context.Context, name string) (*dataproc.Operation, error) {
	if name == "" {
		return nil, domain.Invalid("dataproc: operation name is required")
	}
	return google.Call(ctx, c.retryer, "dataproc.operations.get", func(ctx context.Context) (*dataproc.Operation, error) {
		return c.svc.Projects.Regions.Operations.Get(name).Context(ctx).Do()
	})
}

// WaitOperation polls an operation until it is done. An operation that
// finished with an error is returned together with a *domain.JobError.
func (c *Client) WaitOperation(ctx context.Context, name string) (*dataproc.Operation, error) {
	return c.ops.Wait(ctx, name)
}

// WaitOperations waits on each operation in order and reports one outcome per name.
func (c *Client) WaitOperations(ctx context.Context, names []string) []domain.Outcome[string, *dataproc.Operation] {
	return c.ops.WaitAll(ctx, names)
}

// OperationMetadata decodes the cluster operation metadata. It returns nil
// when the operation carries none or it cannot be decoded.
func OperationMetadata(op *dataproc.Operation) *dataproc.ClusterOperationMetadata {
	if op == nil || len(op.Metadata) == 0 {
		return nil
	}
	var md dataproc.ClusterOperationMetadata
	if err := json.Unmarshal(op.Metadata, &md); err != nil {
		return nil
	}
	return &md
}

func operationState(op *dataproc.Operation) string {
	if md := OperationMetadata(op); md != nil && md.Status != nil {
		return md.Status.State
	}
	return ""
}

func operationDone(op *dataproc.Operation) bool {
	return op != nil && (op.Done || operationState(op) == stateDone)
}

func operationError(op *dataproc.Operation) *domain.JobError {
	if op == nil || op.Error == nil {
		return nil
	}
	return &domain.JobError{
		Reason:   codes.Code(op.Error.Code).String(),
		Message:  op.Error.Message,
		Location: op.Name,
	}
}

// OperationSummary describes an operation in one line, e.g.
// "[Dataproc] CREATE Operation (6b3c...) (2 Minutes 10 Seconds)".
func OperationSummary(op *dataproc.Operation) string {
	if op == nil {
		return "[Dataproc] unknown operation"
	}
	opType := "UNKNOWN"
	md := OperationMetadata(op)
	if md != nil && md.OperationType != "" {
		opType = md.OperationType
	}
	s := fmt.Sprintf("[Dataproc] %s Operation (%s)", opType, lastSegment(op.Name))
	if md != nil && md.Status != nil && len(md.StatusHistory) > 0 {
		if d, ok := elapsed(md.StatusHistory[0].StateStartTime, md.Status.StateStartTime); ok {
			s += " (" + google.Elapsed(d) + ")"
		}
	}
	return s
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// OperationRef converts an operation for the tracker.
func (c *Client) OperationRef(projectID, name string) domain.JobRef {
	return domain.JobRef{
		ID:        name,
		Service:   domain.ServiceDataprocOperation,
		ProjectID: projectID,
		Location:  c.region,
	}
}

// OperationPoller reports operation status to the tracker.
func (c *Client) OperationPoller() driven.JobPoller {
	return operationPoller{c}
}

type operationPoller struct{ c *Client }

func (operationPoller) Service() domain.Service {
	return domain.ServiceDataprocOperation
}

func (operationPoller) DefaultInterval() time.Duration {
	return DefaultOperationPollInterval
}

func (p operationPoller) PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	op, err := p.c.GetOperation(ctx, ref.ID)
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	status := domain.JobStatus{Ref: ref, State: operationState(op), Done: operationDone(op)}
	if status.Done {
		if status.State == "" {
			status.State = stateDone
		}
		status.Failure = operationError(op)
		status.Summary = OperationSummary(op)
	}
	return status, nil
}
