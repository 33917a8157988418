// Package compute wraps the Compute Engine v1 API for one project: regions,
// zones, instances, static addresses and the zone and region operations
// that mutations produce.
package compute

import (
	"context"
	"fmt"
	"slices"
	"time"

	"google.golang.org/api/compute/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// DefaultPollInterval is the pause between operation status reads.
const DefaultPollInterval = 500 * time.Millisecond

// Client is a Compute Engine client bound to a project.
type Client struct {
	svc     *compute.Service
	retryer *google.Retryer
	project string
	ops     *services.Waiter[OperationRef, *compute.Operation]
}

// NewClient wraps an existing service.
func NewClient(svc *compute.Service, retryer *google.Retryer, projectID string, wait google.WaitConfig) *Client {
	c := &Client{svc: svc, retryer: retryer, project: projectID}
	c.ops = google.NewWaiter(wait, "compute.operation", DefaultPollInterval, c.GetOperation, operationDone, operationError)
	return c
}

// Open creates a client from connection settings.
func Open(ctx context.Context, cfg google.Config, projectID string, retry google.RetryConfig, wait google.WaitConfig) (*Client, error) {
	if projectID == "" {
		return nil, domain.Invalid("compute: project id is required")
	}
	svc, err := google.NewComputeService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create compute service: %w", err)
	}
	return NewClient(svc, google.NewRetryer(retry, google.NewRateLimiter(google.ServiceCompute)), projectID, wait), nil
}

// API returns the underlying service.
func (c *Client) API() *compute.Service {
	return c.svc
}

// ProjectID returns the bound project.
func (c *Client) ProjectID() string {
	return c.project
}

// Project returns the bound project resource.
func (c *Client) Project(ctx context.Context) (*compute.Project, error) {
	return google.Call(ctx, c.retryer, "compute.projects.get", func(ctx context.Context) (*compute.Project, error) {
		return c.svc.Projects.Get(c.project).Context(ctx).Do()
	})
}

// ListRegions lists the project's regions. filter is a server-side filter
// expression and may be empty.
func (c *Client) ListRegions(filter string, opts domain.ListOptions[*compute.Region]) *services.Iterator[*compute.Region] {
	return services.List(c.regionPager(filter), opts)
}

// ListZones lists the project's zones.
func (c *Client) ListZones(filter string, opts domain.ListOptions[*compute.Zone]) *services.Iterator[*compute.Zone] {
	return services.List(c.zonePager(filter), opts)
}

func (c *Client) regionPager(filter string) driven.PageFetcher[*compute.Region] {
	return google.Pager(c.retryer, "compute.regions.list",
		func(ctx context.Context, token string) (*compute.RegionList, error) {
			call := c.svc.Regions.List(c.project).Context(ctx)
			if filter != "" {
				call = call.Filter(filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *compute.RegionList) ([]*compute.Region, string) { return resp.Items, resp.NextPageToken },
	)
}

func (c *Client) zonePager(filter string) driven.PageFetcher[*compute.Zone] {
	return google.Pager(c.retryer, "compute.zones.list",
		func(ctx context.Context, token string) (*compute.ZoneList, error) {
			call := c.svc.Zones.List(c.project).Context(ctx)
			if filter != "" {
				call = call.Filter(filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *compute.ZoneList) ([]*compute.Zone, string) { return resp.Items, resp.NextPageToken },
	)
}

// scopeNames lists every zone or region name.
func (c *Client) scopeNames(ctx context.Context, kind ScopeKind) ([]string, error) {
	var names []string
	switch kind {
	case ScopeZone:
		zones, err := services.List(c.zonePager(""), domain.ListOptions[*compute.Zone]{}).Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, z := range zones {
			names = append(names, z.Name)
		}
	case ScopeRegion:
		regions, err := services.List(c.regionPager(""), domain.ListOptions[*compute.Region]{}).Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range regions {
			names = append(names, r.Name)
		}
	default:
		return nil, domain.Invalid("compute: unknown scope kind %q", kind)
	}
	logger.Debug("compute: listing across %d %s(s)", len(names), kind)
	return names, nil
}

// acrossScopes chains one listing per zone or region into a single
// listing. Its page tokens are encoded Cursors, so a listing can resume
// in the middle of any scope.
func acrossScopes[T any](c *Client, kind ScopeKind, pager func(scope string) driven.PageFetcher[T]) driven.PageFetcher[T] {
	var names []string
	return driven.PageFetcherFunc[T](func(ctx context.Context, token string) (domain.Page[T], error) {
		cur, err := DecodeCursor(token)
		if err != nil {
			return domain.Page[T]{}, err
		}
		if names == nil {
			if names, err = c.scopeNames(ctx, kind); err != nil {
				return domain.Page[T]{}, err
			}
		}
		if len(names) == 0 {
			return domain.Page[T]{}, nil
		}

		idx := 0
		if cur.Scope != "" {
			if idx = slices.Index(names, cur.Scope); idx < 0 {
				return domain.Page[T]{}, fmt.Errorf("%w: unknown %s %q", ErrInvalidCursor, kind, cur.Scope)
			}
		}

		page, err := pager(names[idx]).FetchPage(ctx, cur.Token)
		if err != nil {
			return domain.Page[T]{}, err
		}
		switch {
		case page.NextPageToken != "":
			page.NextPageToken = Cursor{Scope: names[idx], Token: page.NextPageToken}.Encode()
		case idx+1 < len(names):
			page.NextPageToken = Cursor{Scope: names[idx+1]}.Encode()
		}
		return page, nil
	})
}

// ListInstances lists the instances in zone, or in every zone when zone is empty.
func (c *Client) ListInstances(zone, filter string, opts domain.ListOptions[*compute.Instance]) *services.Iterator[*compute.Instance] {
	pager := c.instancePager(filter)
	if zone != "" {
		return services.List(pager(zone), opts)
	}
	return services.List(acrossScopes(c, ScopeZone, pager), opts)
}

func (c *Client) instancePager(filter string) func(zone string) driven.PageFetcher[*compute.Instance] {
	return func(zone string) driven.PageFetcher[*compute.Instance] {
		return google.Pager(c.retryer, "compute.instances.list",
			func(ctx context.Context, token string) (*compute.InstanceList, error) {
				call := c.svc.Instances.List(c.project, zone).Context(ctx)
				if filter != "" {
					call = call.Filter(filter)
				}
				if token != "" {
					call = call.PageToken(token)
				}
				return call.Do()
			},
			func(resp *compute.InstanceList) ([]*compute.Instance, string) { return resp.Items, resp.NextPageToken },
		)
	}
}

// ListAddresses lists the static addresses in region, or in every region
// when region is empty.
func (c *Client) ListAddresses(region, filter string, opts domain.ListOptions[*compute.Address]) *services.Iterator[*compute.Address] {
	pager := c.addressPager(filter)
	if region != "" {
		return services.List(pager(region), opts)
	}
	return services.List(acrossScopes(c, ScopeRegion, pager), opts)
}

func (c *Client) addressPager(filter string) func(region string) driven.PageFetcher[*compute.Address] {
	return func(region string) driven.PageFetcher[*compute.Address] {
		return google.Pager(c.retryer, "compute.addresses.list",
			func(ctx context.Context, token string) (*compute.AddressList, error) {
				call := c.svc.Addresses.List(c.project, region).Context(ctx)
				if filter != "" {
					call = call.Filter(filter)
				}
				if token != "" {
					call = call.PageToken(token)
				}
				return call.Do()
			},
			func(resp *compute.AddressList) ([]*compute.Address, string) { return resp.Items, resp.NextPageToken },
		)
	}
}

// GetInstance returns one instance.
func (c *Client) GetInstance(ctx context.Context, zone, name string) (*compute.Instance, error) {
	if zone == "" || name == "" {
		return nil, domain.Invalid("compute: zone and instance name are required")
	}
	return google.Call(ctx, c.retryer, "compute.instances.get", func(ctx context.Context) (*compute.Instance, error) {
		return c.svc.Instances.Get(c.project, zone, name).Context(ctx).Do()
	})
}

// GetAddress returns one static address.
func (c *Client) GetAddress(ctx context.Context, region, name string) (*compute.Address, error) {
	if region == "" || name == "" {
		return nil, domain.Invalid("compute: region and address name are required")
	}
	return google.Call(ctx, c.retryer, "compute.addresses.get", func(ctx context.Context) (*compute.Address, error) {
		return c.svc.Addresses.Get(c.project, region, name).Context(ctx).Do()
	})
}
