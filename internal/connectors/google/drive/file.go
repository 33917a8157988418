package drive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// Export formats for Google Workspace files.
const (
	ExportMimeText = "text/plain"
	ExportMimeCSV  = "text/csv"
)

var uploadFields = googleapi.Field("id, name, size, modifiedTime, parents, webViewLink")

// exportMime returns the format a Workspace file is exported as, or "" for
// files whose content can be downloaded directly.
func exportMime(mimeType string) string {
	switch mimeType {
	case MimeTypeGoogleSheet:
		return ExportMimeCSV
	case MimeTypeGoogleDoc, MimeTypeGoogleSlides:
		return ExportMimeText
	default:
		return ""
	}
}

// Download writes a file's content to w. Spreadsheets are exported as CSV
// (first sheet) and documents and presentations as plain text.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (google.TransferSummary, error) {
	file, err := c.GetFile(ctx, fileID, nil)
	if err != nil {
		return google.TransferSummary{}, err
	}
	summary := transferSummary("downloaded", file)
	if file.MimeType == MimeTypeFolder {
		return summary, domain.Invalid("%s is a folder", fileID)
	}

	start := c.now()
	body, err := google.Call(ctx, c.retryer, "drive.files.download", func(ctx context.Context) (io.ReadCloser, error) {
		var (
			resp *http.Response
			err  error
		)
		if export := exportMime(file.MimeType); export != "" {
			resp, err = c.svc.Files.Export(fileID, export).Context(ctx).Download()
		} else {
			resp, err = c.svc.Files.Get(fileID).Context(ctx).Download()
		}
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
		return summary, fmt.Errorf("download %s: %w", fileID, err)
	}
	summary.Bytes = n
	summary.Elapsed = c.now().Sub(start)
	logger.Info("%s", summary)
	return summary, nil
}

// DownloadCSV downloads a spreadsheet or CSV file and parses its rows.
func (c *Client) DownloadCSV(ctx context.Context, fileID string) ([][]string, google.TransferSummary, error) {
	var buf bytes.Buffer
	summary, err := c.Download(ctx, fileID, &buf)
	if err != nil {
		return nil, summary, err
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		return nil, summary, fmt.Errorf("parse csv from %s: %w", fileID, err)
	}
	return rows, summary, nil
}

// UploadOptions configures Upload.
type UploadOptions struct {
	// Name is the Drive file name. Defaults to the local file's base name.
	Name string

	// Parent is the folder to upload into (optional).
	Parent string

	// Overwrite updates an existing file with the same name. Without it an
	// existing file is reported as domain.ErrAlreadyExists.
	Overwrite bool
}

// Upload creates a file from a local path, or updates the one file with the
// same name in the same folder. More than one match is rejected.
func (c *Client) Upload(ctx context.Context, path string, opts UploadOptions) (*drive.File, google.TransferSummary, error) {
	name := opts.Name
	if name == "" {
		name = filepath.Base(path)
	}
	q := ListQuery{Name: name, Fields: []string{"files(id, name)"}}
	if opts.Parent != "" {
		q.FolderIDs = []string{opts.Parent}
	}

	existing, err := c.ListFiles(q, domain.ListOptions[*drive.File]{MaxResults: 2}).Collect(ctx)
	if err != nil {
		return nil, google.TransferSummary{}, err
	}
	if len(existing) > 1 {
		return nil, google.TransferSummary{}, domain.Invalid("more than one file named %q", name)
	}
	if len(existing) == 1 && !opts.Overwrite {
		return nil, google.TransferSummary{}, fmt.Errorf("%w: %s [%s]", domain.ErrAlreadyExists, name, existing[0].Id)
	}

	start := c.now()
	file, err := google.Call(ctx, c.retryer, "drive.files.upload", func(ctx context.Context) (*drive.File, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, google.Permanent(fmt.Errorf("open %s: %w", path, err))
		}
		defer f.Close()

		media := googleapi.ChunkSize(c.chunkSize)
		if len(existing) == 1 {
			return c.svc.Files.Update(existing[0].Id, &drive.File{Name: name}).
				Media(f, media).Fields(uploadFields).Context(ctx).Do()
		}
		meta := &drive.File{Name: name}
		if opts.Parent != "" {
			meta.Parents = []string{opts.Parent}
		}
		return c.svc.Files.Create(meta).Media(f, media).Fields(uploadFields).Context(ctx).Do()
	})
	if err != nil {
		return nil, google.TransferSummary{}, err
	}

	summary := transferSummary("uploaded", file)
	summary.Elapsed = c.now().Sub(start)
	logger.Info("%s", summary)
	return file, summary, nil
}

func transferSummary(description string, file *drive.File) google.TransferSummary {
	s := google.TransferSummary{
		Service:     "Drive",
		Description: description,
		Target:      fmt.Sprintf("%s [%s]", file.Name, file.Id),
		Bytes:       -1,
	}
	if file.Size > 0 {
		s.Bytes = file.Size
	}
	return s
}
