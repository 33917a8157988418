// Package storage wraps the Cloud Storage JSON API: bucket and object
// listings, object metadata, deletes and chunked transfers.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	gcs "google.golang.org/api/storage/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Client is a Cloud Storage API client.
type Client struct {
	svc       *gcs.Service
	retryer   *google.Retryer
	chunkSize int
	now       func() time.Time
}

// NewClient wraps an existing service. chunkSize bounds each upload request;
// zero uses domain.DefaultChunkSize.
func NewClient(svc *gcs.Service, retryer *google.Retryer, chunkSize int) *Client {
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
	svc, err := google.NewStorageService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return NewClient(svc, google.NewRetryer(retry, google.NewRateLimiter(google.ServiceStorage)), chunkSize), nil
}

// ObjectName joins path parts into an object name.
func ObjectName(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, "/")
}

// URI returns the gs:// form of an object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ParseURI splits "gs://bucket/object" into bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", domain.Invalid("%q is not a gs:// uri", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", domain.Invalid("%q has no bucket", uri)
	}
	return bucket, object, nil
}

// ListBuckets lists the buckets in a project.
func (c *Client) ListBuckets(projectID string, opts domain.ListOptions[*gcs.Bucket]) *services.Iterator[*gcs.Bucket] {
	return services.List(google.Pager(c.retryer, "storage.buckets.list",
		func(ctx context.Context, token string) (*gcs.Buckets, error) {
			call := c.svc.Buckets.List(projectID).Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *gcs.Buckets) ([]*gcs.Bucket, string) {
			return resp.Items, resp.NextPageToken
		},
	), opts)
}

// ListObjects lists the objects in a bucket whose names start with prefix.
func (c *Client) ListObjects(bucket, prefix string, opts domain.ListOptions[*gcs.Object]) *services.Iterator[*gcs.Object] {
	return services.List(google.Pager(c.retryer, "storage.objects.list",
		func(ctx context.Context, token string) (*gcs.Objects, error) {
			call := c.svc.Objects.List(bucket).Context(ctx)
			if prefix != "" {
				call = call.Prefix(prefix)
			}
			if token != "" {
				call = call.PageToken(token)
			}
			return call.Do()
		},
		func(resp *gcs.Objects) ([]*gcs.Object, string) {
			return resp.Items, resp.NextPageToken
		},
	), opts)
}

// GetObject returns an object's metadata.
func (c *Client) GetObject(ctx context.Context, bucket, object string) (*gcs.Object, error) {
	if bucket == "" || object == "" {
		return nil, domain.Invalid("bucket and object are required")
	}
	return google.Call(ctx, c.retryer, "storage.objects.get", func(ctx context.Context) (*gcs.Object, error) {
		return c.svc.Objects.Get(bucket, object).Context(ctx).Do()
	})
}

// DeleteObject deletes an object.
func (c *Client) DeleteObject(ctx context.Context, bucket, object string) error {
	if bucket == "" || object == "" {
		return domain.Invalid("bucket and object are required")
	}
	return google.Do(ctx, c.retryer, "storage.objects.delete", func(ctx context.Context) error {
		return c.svc.Objects.Delete(bucket, object).Context(ctx).Do()
	})
}

// Download streams an object's content to w.
// Only opening the stream is retried; a failure mid-copy is returned as is
// since w may already hold part of the object.
func (c *Client) Download(ctx context.Context, bucket, object string, w io.Writer) (google.TransferSummary, error) {
	summary := google.TransferSummary{Service: "GCS", Description: "downloaded", Target: URI(bucket, object), Bytes: -1}
	if bucket == "" || object == "" {
		return summary, domain.Invalid("bucket and object are required")
	}

	start := c.now()
	body, err := google.Call(ctx, c.retryer, "storage.objects.download", func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := c.svc.Objects.Get(bucket, object).Context(ctx).Download()
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		return summary, err
	}
	defer body.Close()

	n, err := io.Copy(w, body)
	if err != nil {
		return summary, fmt.Errorf("download %s: %w", summary.Target, err)
	}
	summary.Bytes = n
	summary.Elapsed = c.now().Sub(start)
	logger.Info("%s", summary)
	return summary, nil
}

// DownloadFile downloads an object to a local path.
func (c *Client) DownloadFile(ctx context.Context, bucket, object, path string) (google.TransferSummary, error) {
	f, err := os.Create(path)
	if err != nil {
		return google.TransferSummary{}, fmt.Errorf("create %s: %w", path, err)
	}
	summary, err := c.Download(ctx, bucket, object, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close %s: %w", path, closeErr)
	}
	return summary, err
}

// Upload uploads a local file in chunks of the configured size.
// The file is reopened on every attempt so a retry restarts from the beginning.
func (c *Client) Upload(ctx context.Context, bucket, object, path string) (*gcs.Object, google.TransferSummary, error) {
	summary := google.TransferSummary{Service: "GCS", Description: "uploaded", Target: URI(bucket, object), Bytes: -1}
	if bucket == "" || object == "" {
		return nil, summary, domain.Invalid("bucket and object are required")
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	start := c.now()
	obj, err := google.Call(ctx, c.retryer, "storage.objects.insert", func(ctx context.Context) (*gcs.Object, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, google.Permanent(fmt.Errorf("open %s: %w", path, err))
		}
		defer f.Close()

		return c.svc.Objects.Insert(bucket, &gcs.Object{Name: object, ContentType: contentType}).
			Media(f, googleapi.ChunkSize(c.chunkSize), googleapi.ContentType(contentType)).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, summary, err
	}

	summary.Bytes = int64(obj.Size)
	summary.Elapsed = c.now().Sub(start)
	logger.Info("%s", summary)
	return obj, summary, nil
}
