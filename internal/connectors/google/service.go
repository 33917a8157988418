package google

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/compute/v1"
	"google.golang.org/api/dataproc/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/storage/v1"
	htransport "google.golang.org/api/transport/http"

	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
)

// Scopes requested for each service.
var Scopes = map[ServiceType]string{
	ServiceBigQuery: bigquery.BigqueryScope,
	ServiceStorage:  storage.CloudPlatformScope,
	ServiceDrive:    drive.DriveScope,
	ServiceGmail:    gmail.MailGoogleComScope,
	ServiceCompute:  compute.ComputeScope,
	ServiceDataproc: dataproc.CloudPlatformScope,
}

// Config describes how API clients authenticate and where they connect.
// The zero value uses Application Default Credentials against production endpoints.
type Config struct {
	// CredentialsFile is a service account or authorized user JSON key.
	CredentialsFile string

	// TokenProvider supplies access tokens. Takes precedence over CredentialsFile.
	TokenProvider driven.TokenProvider

	// Endpoint overrides the API base URL.
	Endpoint string

	// NoAuth disables authentication entirely.
	NoAuth bool

	// HTTPClient replaces the transport. Authentication options are ignored when set.
	HTTPClient *http.Client
}

// ClientOptions returns the options for a client of the given service.
func (c Config) ClientOptions(ctx context.Context, service ServiceType) []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	case c.NoAuth:
		opts = append(opts, option.WithoutAuthentication())
	case c.TokenProvider != nil:
		opts = append(opts, option.WithTokenSource(NewTokenSource(ctx, c.TokenProvider)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile)) //nolint:staticcheck // user-supplied key file
	}

	if scope, ok := Scopes[service]; ok && c.HTTPClient == nil {
		opts = append(opts, option.WithScopes(scope))
	}
	return opts
}

// NewHTTPClient creates an authenticated HTTP client for raw REST calls.
// It returns the client together with the resolved endpoint.
func NewHTTPClient(ctx context.Context, cfg Config, service ServiceType) (*http.Client, string, error) {
	if cfg.HTTPClient != nil {
		return cfg.HTTPClient, cfg.Endpoint, nil
	}
	client, endpoint, err := htransport.NewClient(ctx, cfg.ClientOptions(ctx, service)...)
	if err != nil {
		return nil, "", fmt.Errorf("create %s http client: %w", service, err)
	}
	return client, endpoint, nil
}

// NewBigQueryService creates a BigQuery v2 API service.
func NewBigQueryService(ctx context.Context, cfg Config) (*bigquery.Service, error) {
	return bigquery.NewService(ctx, cfg.ClientOptions(ctx, ServiceBigQuery)...)
}

// NewStorageService creates a Cloud Storage JSON API service.
func NewStorageService(ctx context.Context, cfg Config) (*storage.Service, error) {
	return storage.NewService(ctx, cfg.ClientOptions(ctx, ServiceStorage)...)
}

// NewDriveService creates a Google Drive API service.
func NewDriveService(ctx context.Context, cfg Config) (*drive.Service, error) {
	return drive.NewService(ctx, cfg.ClientOptions(ctx, ServiceDrive)...)
}

// NewGmailService creates a Gmail API service.
func NewGmailService(ctx context.Context, cfg Config) (*gmail.Service, error) {
	return gmail.NewService(ctx, cfg.ClientOptions(ctx, ServiceGmail)...)
}

// NewComputeService creates a Compute Engine API service.
func NewComputeService(ctx context.Context, cfg Config) (*compute.Service, error) {
	return compute.NewService(ctx, cfg.ClientOptions(ctx, ServiceCompute)...)
}

// NewDataprocService creates a Dataproc API service.
func NewDataprocService(ctx context.Context, cfg Config) (*dataproc.Service, error) {
	return dataproc.NewService(ctx, cfg.ClientOptions(ctx, ServiceDataproc)...)
}
