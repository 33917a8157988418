// Package dataproc wraps the Dataproc v1 API: clusters, the operations that
// cluster changes produce, and Spark and PySpark jobs.
package dataproc

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/dataproc/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// DefaultRegion is used when no region is configured.
const DefaultRegion = "global"

// Default pause between status reads.
const (
	DefaultOperationPollInterval = time.Second
	DefaultJobPollInterval       = 5 * time.Second
)

// Client is a Dataproc client bound to a region.
type Client struct {
	svc     *dataproc.Service
	retryer *google.Retryer
	region  string
	ops     *services.Waiter[string, *dataproc.Operation]
	jobs    *services.Waiter[JobRef, *dataproc.Job]
}

// NewClient wraps an existing service. An empty region means DefaultRegion.
func NewClient(svc *dataproc.Service, retryer *google.Retryer, region string, wait google.WaitConfig) *Client {
	if region == "" {
		region = DefaultRegion
	}
	c := &Client{svc: svc, retryer: retryer, region: region}
	c.ops = google.NewWaiter(wait, "dataproc.operation", DefaultOperationPollInterval, c.GetOperation, operationDone, operationError)
	c.jobs = google.NewWaiter(wait, "dataproc.job", DefaultJobPollInterval, c.getJobRef, jobDone, jobError)
	return c
}

// Open creates a client from connection settings.
func Open(ctx context.Context, cfg google.Config, region string, retry google.RetryConfig, wait google.WaitConfig) (*Client, error) {
	svc, err := google.NewDataprocService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create dataproc service: %w", err)
	}
	return NewClient(svc, google.NewRetryer(retry, google.NewRateLimiter(google.ServiceDataproc)), region, wait), nil
}

// API returns the underlying service.
func (c *Client) API() *dataproc.Service {
	return c.svc
}

// Region returns the bound region.
func (c *Client) Region() string {
	return c.region
}

// ListClusters lists the clusters of a project. filter is a server-side
// filter expression and may be empty.
func (c *Client) ListClusters(projectID, filter string, opts domain.ListOptions[*dataproc.Cluster]) *services.Iterator[*dataproc.Cluster] {
	return services.List(google.Pager(c.retryer, "dataproc.clusters.list",
		func(ctx context.Context, token string) (*dataproc.ListClustersResponse, error) {
			call := c.svc.Projects.Regions.Clusters.List(projectID, c.region).Context(ctx)
			if filter != "" {
				call = call.Filter(filter)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *dataproc.ListClustersResponse) ([]*dataproc.Cluster, string) {
			return resp.Clusters, resp.NextPageToken
		},
	), opts)
}

// GetCluster returns one cluster.
func (c *Client) GetCluster(ctx context.Context, projectID, name string) (*dataproc.Cluster, error) {
	if err := requireCluster(projectID, name); err != nil {
		return nil, err
	}
	return google.Call(ctx, c.retryer, "dataproc.clusters.get", func(ctx context.Context) (*dataproc.Cluster, error) {
		return c.svc.Projects.Regions.Clusters.Get(projectID, c.region, name).Context(ctx).Do()
	})
}

// DiagnoseCluster starts a diagnosis and returns its operation without waiting.
func (c *Client) DiagnoseCluster(ctx context.Context, projectID, name string) (*dataproc.Operation, error) {
	if err := requireCluster(projectID, name); err != nil {
		return nil, err
	}
	return google.Call(ctx, c.retryer, "dataproc.clusters.diagnose", func(ctx context.Context) (*dataproc.Operation, error) {
		return c.svc.Projects.Regions.Clusters.Diagnose(projectID, c.region, name, &dataproc.DiagnoseClusterRequest{}).Context(ctx).Do()
	})
}

// ClusterSpec describes a cluster to create. Zero fields take the defaults
// noted on each.
type ClusterSpec struct {
	Name string
	Zone string

	// ConfigBucket is the staging bucket. Empty lets Dataproc choose.
	ConfigBucket string
	// Network defaults to "default".
	Network string

	Master NodeGroup
	Worker NodeGroup

	// InitActions are GCS URIs of executables run on every node.
	InitActions []string

	// Async returns the create operation without waiting.
	Async bool
}

// NodeGroup sizes the master or worker instance group.
type NodeGroup struct {
	// Count defaults to 1 for masters and 2 for workers.
	Count int64
	// MachineType defaults to n1-standard-4.
	MachineType string
	// BootDiskGB defaults to 500.
	BootDiskGB int64
}

const (
	defaultMachineType = "n1-standard-4"
	defaultBootDiskGB  = 500
	computeAPIPrefix   = "https://www.googleapis.com/compute/v1/projects/"
)

func (g NodeGroup) config(projectID, zone string, defCount int64) *dataproc.InstanceGroupConfig {
	if g.Count <= 0 {
		g.Count = defCount
	}
	if g.MachineType == "" {
		g.MachineType = defaultMachineType
	}
	if g.BootDiskGB <= 0 {
		g.BootDiskGB = defaultBootDiskGB
	}
	return &dataproc.InstanceGroupConfig{
		NumInstances:   g.Count,
		MachineTypeUri: computeAPIPrefix + projectID + "/zones/" + zone + "/machineTypes/" + g.MachineType,
		DiskConfig: &dataproc.DiskConfig{
			BootDiskSizeGb:  g.BootDiskGB,
			NumLocalSsds:    0,
			ForceSendFields: []string{"NumLocalSsds"},
		},
	}
}

// cluster builds the create request body.
func (s ClusterSpec) cluster(projectID string) *dataproc.Cluster {
	network := s.Network
	if network == "" {
		network = "default"
	}
	actions := make([]*dataproc.NodeInitializationAction, 0, len(s.InitActions))
	for _, uri := range s.InitActions {
		actions = append(actions, &dataproc.NodeInitializationAction{ExecutableFile: uri})
	}
	return &dataproc.Cluster{
		ClusterName: s.Name,
		ProjectId:   projectID,
		Config: &dataproc.ClusterConfig{
			ConfigBucket: s.ConfigBucket,
			GceClusterConfig: &dataproc.GceClusterConfig{
				NetworkUri: computeAPIPrefix + projectID + "/global/networks/" + network,
				ZoneUri:    computeAPIPrefix + projectID + "/zones/" + s.Zone,
			},
			MasterConfig:          s.Master.config(projectID, s.Zone, 1),
			WorkerConfig:          s.Worker.config(projectID, s.Zone, 2),
			InitializationActions: actions,
		},
	}
}

// CreateCluster creates a cluster and, unless spec.Async, waits for the
// create operation.
func (c *Client) CreateCluster(ctx context.Context, projectID string, spec ClusterSpec) (*dataproc.Operation, error) {
	if err := requireCluster(projectID, spec.Name); err != nil {
		return nil, err
	}
	if spec.Zone == "" {
		return nil, domain.Invalid("dataproc: zone is required to create cluster %q", spec.Name)
	}
	requestID := uuid.NewString()
	op, err := google.Call(ctx, c.retryer, "dataproc.clusters.create", func(ctx context.Context) (*dataproc.Operation, error) {
		return c.svc.Projects.Regions.Clusters.Create(projectID, c.region, spec.cluster(projectID)).
			RequestId(requestID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("dataproc: creating cluster %s (%s)", spec.Name, op.Name)
	if spec.Async {
		return op, nil
	}
	return c.WaitOperation(ctx, op.Name)
}

// DeleteCluster deletes a cluster and, unless async, waits for the delete
// operation.
func (c *Client) DeleteCluster(ctx context.Context, projectID, name string, async bool) (*dataproc.Operation, error) {
	if err := requireCluster(projectID, name); err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	op, err := google.Call(ctx, c.retryer, "dataproc.clusters.delete", func(ctx context.Context) (*dataproc.Operation, error) {
		return c.svc.Projects.Regions.Clusters.Delete(projectID, c.region, name).RequestId(requestID).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}
	if async {
		return op, nil
	}
	return c.WaitOperation(ctx, op.Name)
}

func requireCluster(projectID, name string) error {
	if projectID == "" || name == "" {
		return domain.Invalid("dataproc: project and cluster name are required")
	}
	return nil
}
