package compute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/compute/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Ensure Client can report operation status to the tracker.
var _ driven.JobPoller = (*Client)(nil)

const operationStatusDone = "DONE"

// ScopeKind says whether an operation belongs to a zone or a region.
type ScopeKind string

// Operation scopes.
const (
	ScopeZone   ScopeKind = "zone"
	ScopeRegion ScopeKind = "region"
)

// OperationRef identifies a zone or region operation.
type OperationRef struct {
	Kind     ScopeKind
	Location string
	Name     string
}

// ZoneOperation refers to an operation in zone.
func ZoneOperation(zone, name string) OperationRef {
	return OperationRef{Kind: ScopeZone, Location: zone, Name: name}
}

// RegionOperation refers to an operation in region.
func RegionOperation(region, name string) OperationRef {
	return OperationRef{Kind: ScopeRegion, Location: region, Name: name}
}

// Validate checks that every field is set.
func (r OperationRef) Validate() error {
	if r.Kind != ScopeZone && r.Kind != ScopeRegion {
		return domain.Invalid("compute: operation scope must be zone or region, got %q", r.Kind)
	}
	if r.Location == "" || r.Name == "" {
		return domain.Invalid("compute: operation %s and name are required", r.Kind)
	}
	return nil
}

// Path renders "zones/{zone}" or "regions/{region}".
func (r OperationRef) Path() string {
	return string(r.Kind) + "s/" + r.Location
}

// ParseOperationLocation parses a Path back into scope kind and location.
func ParseOperationLocation(path string) (ScopeKind, string, error) {
	kind, loc, ok := strings.Cut(path, "/")
	if !ok || loc == "" {
		return "", "", domain.Invalid("compute: location %q is not zones/NAME or regions/NAME", path)
	}
	switch kind {
	case "zones":
		return ScopeZone, loc, nil
	case "regions":
		return ScopeRegion, loc, nil
	}
	return "", "", domain.Invalid("compute: location %q is not zones/NAME or regions/NAME", path)
}

func operationDone(op *compute.Operation) bool {
	return op != nil && op.Status == operationStatusDone
}

// operationError reads error.errors from a finished operation.
func operationError(op *compute.Operation) *domain.JobError {
	if op == nil || op.Error == nil || len(op.Error.Errors) == 0 {
		return nil
	}
	first := op.Error.Errors[0]
	jerr := &domain.JobError{
		Reason:   first.Code,
		Message:  first.Message,
		Location: first.Location,
	}
	for _, e := range op.Error.Errors {
		jerr.Errors = append(jerr.Errors, domain.JobErrorDetail{
			Reason:   e.Code,
			Message:  e.Message,
			Location: e.Location,
		})
	}
	return jerr
}

// ListOperations lists zone or region operations in location, or across
// every zone or region when location is empty.
func (c *Client) ListOperations(kind ScopeKind, location, filter string, opts domain.ListOptions[*compute.Operation]) *services.Iterator[*compute.Operation] {
	pager := func(loc string) driven.PageFetcher[*compute.Operation] {
		return google.Pager(c.retryer, "compute."+string(kind)+"Operations.list",
			func(ctx context.Context, token string) (*compute.OperationList, error) {
				switch kind {
				case ScopeZone:
					call := c.svc.ZoneOperations.List(c.project, loc).Context(ctx)
					if filter != "" {
						call = call.Filter(filter)
					}
					if token != "" {
						call = call.PageToken(token)
					}
					return call.Do()
				case ScopeRegion:
					call := c.svc.RegionOperations.List(c.project, loc).Context(ctx)
					if filter != "" {
						call = call.Filter(filter)
					}
					if token != "" {
						call = call.PageToken(token)
					}
					return call.Do()
				}
				return nil, google.Permanent(domain.Invalid("compute: operation scope must be zone or region, got %q", kind))
			},
			func(resp *compute.OperationList) ([]*compute.Operation, string) { return resp.Items, resp.NextPageToken },
		)
	}
	if location != "" {
		return services.List(pager(location), opts)
	}
	return services.List(acrossScopes(c, kind, pager), opts)
}

// GetOperation reads an operation once.
func (c *Client) GetOperation(ctx context.Context, ref OperationRef) (*compute.Operation, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if ref.Kind == ScopeRegion {
		return google.Call(ctx, c.retryer, "compute.regionOperations.get", func(ctx context.Context) (*compute.Operation, error) {
			return c.svc.RegionOperations.Get(c.project, ref.Location, ref.Name).Context(ctx).Do()
		})
	}
	return google.Call(ctx, c.retryer, "compute.zoneOperations.get", func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.ZoneOperations.Get(c.project, ref.Location, ref.Name).Context(ctx).Do()
	})
}

// WaitOperation polls an operation until its status is DONE. An operation
// that finished with errors is returned together with a *domain.JobError.
func (c *Client) WaitOperation(ctx context.Context, ref OperationRef) (*compute.Operation, error) {
	return c.ops.Wait(ctx, ref)
}

// WaitOperations waits on each operation in order and reports one outcome per reference.
func (c *Client) WaitOperations(ctx context.Context, refs []OperationRef) []domain.Outcome[OperationRef, *compute.Operation] {
	return c.ops.WaitAll(ctx, refs)
}

// mutate issues a call that returns an operation and waits for it.
func (c *Client) mutate(ctx context.Context, op string, kind ScopeKind, location string, call func(context.Context) (*compute.Operation, error)) (*compute.Operation, error) {
	started, err := google.Call(ctx, c.retryer, op, call)
	if err != nil {
		return nil, err
	}
	logger.Debug("compute: %s started operation %s", op, started.Name)
	return c.WaitOperation(ctx, OperationRef{Kind: kind, Location: location, Name: started.Name})
}

// AddAddress reserves a static address and waits for the operation.
func (c *Client) AddAddress(ctx context.Context, region, name string) (*compute.Operation, error) {
	if region == "" || name == "" {
		return nil, domain.Invalid("compute: region and address name are required")
	}
	return c.mutate(ctx, "compute.addresses.insert", ScopeRegion, region, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Addresses.Insert(c.project, region, &compute.Address{Name: name}).Context(ctx).Do()
	})
}

// DeleteAddress releases a static address and waits for the operation.
func (c *Client) DeleteAddress(ctx context.Context, region, name string) (*compute.Operation, error) {
	if region == "" || name == "" {
		return nil, domain.Invalid("compute: region and address name are required")
	}
	return c.mutate(ctx, "compute.addresses.delete", ScopeRegion, region, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Addresses.Delete(c.project, region, name).Context(ctx).Do()
	})
}

// StartInstance starts an instance and waits for the operation.
func (c *Client) StartInstance(ctx context.Context, zone, name string) (*compute.Operation, error) {
	if zone == "" || name == "" {
		return nil, domain.Invalid("compute: zone and instance name are required")
	}
	return c.mutate(ctx, "compute.instances.start", ScopeZone, zone, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Instances.Start(c.project, zone, name).Context(ctx).Do()
	})
}

// StopInstance stops an instance and waits for the operation.
func (c *Client) StopInstance(ctx context.Context, zone, name string) (*compute.Operation, error) {
	if zone == "" || name == "" {
		return nil, domain.Invalid("compute: zone and instance name are required")
	}
	return c.mutate(ctx, "compute.instances.stop", ScopeZone, zone, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Instances.Stop(c.project, zone, name).Context(ctx).Do()
	})
}

// DeleteInstance deletes an instance and waits for the operation.
func (c *Client) DeleteInstance(ctx context.Context, zone, name string) (*compute.Operation, error) {
	if zone == "" || name == "" {
		return nil, domain.Invalid("compute: zone and instance name are required")
	}
	return c.mutate(ctx, "compute.instances.delete", ScopeZone, zone, func(ctx context.Context) (*compute.Operation, error) {
		return c.svc.Instances.Delete(c.project, zone, name).Context(ctx).Do()
	})
}

// Service implements driven.JobPoller.
func (c *Client) Service() domain.Service {
	return domain.ServiceCompute
}

// DefaultInterval implements driven.JobPoller.
func (c *Client) DefaultInterval() time.Duration {
	return DefaultPollInterval
}

// JobRef converts an operation reference for the tracker.
func (c *Client) JobRef(ref OperationRef) domain.JobRef {
	return domain.JobRef{
		ID:        ref.Name,
		Service:   domain.ServiceCompute,
		ProjectID: c.project,
		Location:  ref.Path(),
	}
}

// PollJob implements driven.JobPoller with a single status read. The
// reference's Location is "zones/NAME" or "regions/NAME". Its project must
// match the client's.
func (c *Client) PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	if ref.ProjectID != "" && ref.ProjectID != c.project {
		return domain.JobStatus{Ref: ref}, domain.Invalid("compute: client is bound to project %q, not %q", c.project, ref.ProjectID)
	}
	kind, loc, err := ParseOperationLocation(ref.Location)
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	op, err := c.GetOperation(ctx, OperationRef{Kind: kind, Location: loc, Name: ref.ID})
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	status := domain.JobStatus{Ref: ref, State: op.Status, Done: operationDone(op)}
	if status.Done {
		status.Failure = operationError(op)
		status.Summary = OperationSummary(op)
	}
	return status, nil
}

// OperationSummary describes an operation in one line, e.g.
// "[Compute] Start Operation (operation-123) DONE (0 Minutes 5 Seconds)".
func OperationSummary(op *compute.Operation) string {
	if op == nil {
		return "[Compute] unknown operation"
	}
	var b strings.Builder
	b.WriteString("[Compute] ")
	if t := google.Title(op.OperationType); t != "" {
		b.WriteString(t + " ")
	}
	fmt.Fprintf(&b, "Operation (%s) %s", op.Name, op.Status)
	if d, ok := operationElapsed(op); ok {
		fmt.Fprintf(&b, " (%s)", google.Elapsed(d))
	}
	return b.String()
}

func operationElapsed(op *compute.Operation) (time.Duration, bool) {
	start := op.StartTime
	if start == "" {
		start = op.InsertTime
	}
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return 0, false
	}
	to, err := time.Parse(time.RFC3339, op.EndTime)
	if err != nil {
		return 0, false
	}
	return to.Sub(from), true
}
