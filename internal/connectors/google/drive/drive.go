// Package drive wraps the Google Drive v3 API: account info, file listings,
// downloads with Google Workspace export, and create-or-update uploads.
package drive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/services"
)

// Default field selections.
var (
	DefaultAboutFields = []string{"kind", "storageQuota", "user"}
	DefaultFileFields  = []string{"id", "name", "mimeType", "modifiedTime", "size", "webViewLink", "parents"}
)

// Client is a Google Drive API client.
type Client struct {
	svc       *drive.Service
	retryer   *google.Retryer
	chunkSize int
	now       func() time.Time
}

// NewClient wraps an existing service. chunkSize bounds each upload request;
// zero uses domain.DefaultChunkSize.
func NewClient(svc *drive.Service, retryer *google.Retryer, chunkSize int) *Client {
	if chunkSize <= 0 {
		chunkSize = domain.DefaultChunkSize
	}
	return &Client{
		svc:       svc,
		retryer:   retryer,
		chunkSize: chunkSize,
		now:       time.Now,
	}
}

// Open creates a client from connection settings.
func Open(ctx context.Context, cfg google.Config, retry google.RetryConfig, chunkSize int) (*Client, error) {
	svc, err := google.NewDriveService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return NewClient(svc, google.NewRetryer(retry, google.NewRateLimiter(google.ServiceDrive)), chunkSize), nil
}

// About returns account and quota information. Nil fields selects
// DefaultAboutFields.
func (c *Client) About(ctx context.Context, fields []string) (*drive.About, error) {
	if len(fields) == 0 {
		fields = DefaultAboutFields
	}
	return google.Call(ctx, c.retryer, "drive.about.get", func(ctx context.Context) (*drive.About, error) {
		return c.svc.About.Get().Fields(joinFields(fields)).Context(ctx).Do()
	})
}

// GetFile returns file metadata. Nil fields selects DefaultFileFields.
func (c *Client) GetFile(ctx context.Context, fileID string, fields []string) (*drive.File, error) {
	if fileID == "" {
		return nil, domain.Invalid("file id is required")
	}
	if len(fields) == 0 {
		fields = DefaultFileFields
	}
	return google.Call(ctx, c.retryer, "drive.files.get", func(ctx context.Context) (*drive.File, error) {
		return c.svc.Files.Get(fileID).Fields(joinFields(fields)).Context(ctx).Do()
	})
}

// ListFiles lists files matching q.
func (c *Client) ListFiles(q ListQuery, opts domain.ListOptions[*drive.File]) *services.Iterator[*drive.File] {
	query := q.String()
	fields := q.fields()
	return services.List(google.Pager(c.retryer, "drive.files.list",
		func(ctx context.Context, token string) (*drive.FileList, error) {
			call := c.svc.Files.List().Context(ctx)
			if query != "" {
				call = call.Q(query)
			}
			if q.Spaces != "" {
				call = call.Spaces(q.Spaces)
			}
			if fields != "" {
				call = call.Fields(googleapi.Field(fields))
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *drive.FileList) ([]*drive.File, string) {
			return resp.Files, resp.NextPageToken
		},
	), opts)
}

func joinFields(fields []string) googleapi.Field {
	return googleapi.Field(strings.Join(fields, ", "))
}
