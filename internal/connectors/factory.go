package connectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/bigquery"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/compute"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/dataproc"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/drive"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/gmail"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/storage"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driving"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Ensure Factory implements the interface.
var _ driving.RawLister = (*Factory)(nil)

// BaseURLs are the production endpoints relative raw listing paths resolve against.
var BaseURLs = map[google.ServiceType]string{
	google.ServiceBigQuery: "https://bigquery.googleapis.com/bigquery/v2/",
	google.ServiceStorage:  "https://storage.googleapis.com/storage/v1/",
	google.ServiceDrive:    "https://www.googleapis.com/drive/v3/",
	google.ServiceGmail:    "https://gmail.googleapis.com/gmail/v1/",
	google.ServiceCompute:  "https://compute.googleapis.com/compute/v1/",
	google.ServiceDataproc: "https://dataproc.googleapis.com/v1/",
}

// Factory opens and caches one client per Google service.
type Factory struct {
	cfg      google.Config
	settings domain.AppSettings

	mu       sync.Mutex
	bq       *bigquery.Client
	gcs      *storage.Client
	drv      *drive.Client
	mail     *gmail.Client
	dp       *dataproc.Client
	compute  map[string]*compute.Client
	retryers map[google.ServiceType]*google.Retryer
}

// NewFactory creates a factory. Nothing is opened until a client is requested.
func NewFactory(cfg google.Config, settings domain.AppSettings) *Factory {
	return &Factory{
		cfg:      cfg,
		settings: settings,
		compute:  make(map[string]*compute.Client),
		retryers: make(map[google.ServiceType]*google.Retryer),
	}
}

// Settings returns the settings clients are opened with.
func (f *Factory) Settings() domain.AppSettings {
	return f.settings
}

func (f *Factory) retry() google.RetryConfig {
	return google.RetryConfigFromSettings(f.settings.Retry)
}

func (f *Factory) wait() google.WaitConfig {
	return google.WaitConfigFromSettings(f.settings.Poll)
}

// retryer returns the shared retryer of a service (caller must hold lock).
func (f *Factory) retryer(service google.ServiceType) *google.Retryer {
	r, ok := f.retryers[service]
	if !ok {
		r = google.NewRetryer(f.retry(), google.NewRateLimiter(service))
		f.retryers[service] = r
	}
	return r
}

// BigQuery returns the BigQuery client.
func (f *Factory) BigQuery(ctx context.Context) (*bigquery.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bq == nil {
		svc, err := google.NewBigQueryService(ctx, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("create bigquery service: %w", err)
		}
		logger.Debug("opened bigquery client")
		f.bq = bigquery.NewClient(svc, f.retryer(google.ServiceBigQuery), f.wait())
	}
	return f.bq, nil
}

// Storage returns the Cloud Storage client.
func (f *Factory) Storage(ctx context.Context) (*storage.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gcs == nil {
		svc, err := google.NewStorageService(ctx, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("create storage service: %w", err)
		}
		logger.Debug("opened storage client")
		f.gcs = storage.NewClient(svc, f.retryer(google.ServiceStorage), f.settings.ChunkSize)
	}
	return f.gcs, nil
}

// Drive returns the Drive client.
func (f *Factory) Drive(ctx context.Context) (*drive.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.drv == nil {
		svc, err := google.NewDriveService(ctx, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("create drive service: %w", err)
		}
		logger.Debug("opened drive client")
		f.drv = drive.NewClient(svc, f.retryer(google.ServiceDrive), f.settings.ChunkSize)
	}
	return f.drv, nil
}

// Gmail returns the Gmail client.
func (f *Factory) Gmail(ctx context.Context) (*gmail.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mail == nil {
		svc, err := google.NewGmailService(ctx, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("create gmail service: %w", err)
		}
		logger.Debug("opened gmail client")
		f.mail = gmail.NewClient(svc, f.retryer(google.ServiceGmail))
	}
	return f.mail, nil
}

// Dataproc returns the Dataproc client bound to the configured region.
func (f *Factory) Dataproc(ctx context.Context) (*dataproc.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dp == nil {
		svc, err := google.NewDataprocService(ctx, f.cfg)
		if err != nil {
			return nil, fmt.Errorf("create dataproc service: %w", err)
		}
		logger.Debug("opened dataproc client for region %s", f.settings.DataprocRegion)
		f.dp = dataproc.NewClient(svc, f.retryer(google.ServiceDataproc), f.settings.DataprocRegion, f.wait())
	}
	return f.dp, nil
}

// Compute returns a Compute Engine client bound to projectID.
// An empty projectID uses the configured default project.
func (f *Factory) Compute(ctx context.Context, projectID string) (*compute.Client, error) {
	if projectID == "" {
		projectID = f.settings.Project
	}
	if projectID == "" {
		return nil, domain.Invalid("compute needs a project")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.compute[projectID]; ok {
		return c, nil
	}
	svc, err := google.NewComputeService(ctx, f.cfg)
	if err != nil {
		return nil, fmt.Errorf("create compute service: %w", err)
	}
	logger.Debug("opened compute client for project %s", projectID)
	c := compute.NewClient(svc, f.retryer(google.ServiceCompute), projectID, f.wait())
	f.compute[projectID] = c
	return c, nil
}

// ListRaw implements driving.RawLister.
func (f *Factory) ListRaw(ctx context.Context, req domain.RawListRequest) ([]domain.Record, error) {
	pager, err := f.RecordPager(ctx, req)
	if err != nil {
		return nil, err
	}
	return services.List[domain.Record](pager, domain.ListOptions[domain.Record]{MaxResults: req.MaxResults}).Collect(ctx)
}

// RecordPager builds a raw pager for req.
func (f *Factory) RecordPager(ctx context.Context, req domain.RawListRequest) (*google.RecordPager, error) {
	service := google.ServiceType(strings.ToLower(req.Service))
	if service == "" {
		service = google.ServiceStorage
	}
	base, ok := BaseURLs[service]
	if !ok {
		return nil, domain.Invalid("unknown service %q", req.Service)
	}
	if f.cfg.Endpoint != "" {
		base = f.cfg.Endpoint
	}

	target, err := resolve(base, req.URL)
	if err != nil {
		return nil, err
	}

	client, _, err := google.NewHTTPClient(ctx, f.cfg, service)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	retryer := f.retryer(service)
	f.mu.Unlock()

	pager, err := google.NewRecordPager(client, retryer, target, url.Values(req.Params), req.Keys)
	if err != nil {
		return nil, err
	}
	if req.TokenParam != "" {
		pager.WithTokenParam(req.TokenParam)
	}
	return pager, nil
}

// resolve joins a relative collection path onto base. Absolute URLs pass through.
func resolve(base, ref string) (string, error) {
	if ref == "" {
		return "", domain.Invalid("list url is required")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", domain.Invalid("list url %q: %v", ref, err)
	}
	if r.IsAbs() {
		return r.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	return b.ResolveReference(&url.URL{Path: strings.TrimPrefix(r.Path, "/"), RawQuery: r.RawQuery}).String(), nil
}

// Pollers returns one tracker poller per pollable service. Each opens its
// client on the first status read.
func (f *Factory) Pollers() []driven.JobPoller {
	return []driven.JobPoller{
		lazyPoller{service: domain.ServiceBigQuery, interval: bigquery.DefaultPollInterval, open: func(ctx context.Context, _ domain.JobRef) (driven.JobPoller, error) {
			return f.BigQuery(ctx)
		}},
		lazyPoller{service: domain.ServiceCompute, interval: compute.DefaultPollInterval, open: func(ctx context.Context, ref domain.JobRef) (driven.JobPoller, error) {
			return f.Compute(ctx, ref.ProjectID)
		}},
		lazyPoller{service: domain.ServiceDataprocOperation, interval: dataproc.DefaultOperationPollInterval, open: func(ctx context.Context, _ domain.JobRef) (driven.JobPoller, error) {
			c, err := f.Dataproc(ctx)
			if err != nil {
				return nil, err
			}
			return c.OperationPoller(), nil
		}},
		lazyPoller{service: domain.ServiceDataprocJob, interval: dataproc.DefaultJobPollInterval, open: func(ctx context.Context, _ domain.JobRef) (driven.JobPoller, error) {
			c, err := f.Dataproc(ctx)
			if err != nil {
				return nil, err
			}
			return c.JobPoller(), nil
		}},
	}
}

type lazyPoller struct {
	service  domain.Service
	interval time.Duration
	open     func(ctx context.Context, ref domain.JobRef) (driven.JobPoller, error)
}

func (p lazyPoller) Service() domain.Service {
	return p.service
}

func (p lazyPoller) DefaultInterval() time.Duration {
	return p.interval
}

func (p lazyPoller) PollJob(ctx context.Context, ref domain.JobRef) (domain.JobStatus, error) {
	poller, err := p.open(ctx, ref)
	if err != nil {
		return domain.JobStatus{Ref: ref}, err
	}
	return poller.PollJob(ctx, ref)
}
