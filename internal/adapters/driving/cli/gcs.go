package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	gcs "google.golang.org/api/storage/v1"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/storage"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var gcsPrefix string

var gcsCmd = &cobra.Command{
	Use:   "gcs",
	Short: "Cloud Storage buckets and objects",
}

var gcsBucketsCmd = &cobra.Command{
	Use:   "buckets",
	Short: "List buckets in the project",
	Args:  cobra.NoArgs,
	RunE:  runGCSBuckets,
}

var gcsLsCmd = &cobra.Command{
	Use:   "ls <bucket>",
	Short: "List objects in a bucket",
	Args:  cobra.ExactArgs(1),
	RunE:  runGCSLs,
}

var gcsGetCmd = &cobra.Command{
	Use:   "get <gs://bucket/object>",
	Short: "Show object metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runGCSGet,
}

var gcsRmCmd = &cobra.Command{
	Use:   "rm <gs://bucket/object>",
	Short: "Delete an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runGCSRm,
}

var gcsDownloadCmd = &cobra.Command{
	Use:   "download <gs://bucket/object> <path>",
	Short: "Download an object to a local file",
	Args:  cobra.ExactArgs(2),
	RunE:  runGCSDownload,
}

var gcsUploadCmd = &cobra.Command{
	Use:   "upload <path> <gs://bucket/object>",
	Short: "Upload a local file in resumable chunks",
	Args:  cobra.ExactArgs(2),
	RunE:  runGCSUpload,
}

func init() {
	gcsLsCmd.Flags().StringVar(&gcsPrefix, "prefix", "", "only objects whose name starts with this prefix")
	gcsCmd.AddCommand(gcsBucketsCmd, gcsLsCmd, gcsGetCmd, gcsRmCmd, gcsDownloadCmd, gcsUploadCmd)
	rootCmd.AddCommand(gcsCmd)
}

func storageClient(cmd *cobra.Command) (*storage.Client, error) {
	c, err := requireClients()
	if err != nil {
		return nil, err
	}
	return c.Storage(cmd.Context())
}

// objectURI parses a gs:// argument that must name an object.
func objectURI(arg string) (bucket, object string, err error) {
	bucket, object, err = storage.ParseURI(arg)
	if err != nil {
		return "", "", err
	}
	if object == "" {
		return "", "", domain.Invalid("%q names a bucket, not an object", arg)
	}
	return bucket, object, nil
}

func runGCSBuckets(cmd *cobra.Command, _ []string) error {
	projectID, err := project()
	if err != nil {
		return err
	}
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	buckets, err := client.ListBuckets(projectID, listOptions[*gcs.Bucket]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list buckets: %w", err)
	}
	return list(cmd, buckets, []string{"BUCKET", "LOCATION", "CLASS", "CREATED"}, func(b *gcs.Bucket) []string {
		return []string{b.Name, b.Location, b.StorageClass, b.TimeCreated}
	})
}

func runGCSLs(cmd *cobra.Command, args []string) error {
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	objects, err := client.ListObjects(args[0], gcsPrefix, listOptions[*gcs.Object]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}
	return list(cmd, objects, []string{"NAME", "SIZE", "UPDATED"}, func(o *gcs.Object) []string {
		return []string{o.Name, google.Size(o.Size), o.Updated}
	})
}

func runGCSGet(cmd *cobra.Command, args []string) error {
	bucket, object, err := objectURI(args[0])
	if err != nil {
		return err
	}
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	obj, err := client.GetObject(cmd.Context(), bucket, object)
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}

	if jsonOutput {
		return newRenderer(cmd).json(obj)
	}
	cmd.Printf("Name:          %s\n", storage.URI(obj.Bucket, obj.Name))
	cmd.Printf("Size:          %s\n", google.Size(obj.Size))
	cmd.Printf("Content-Type:  %s\n", obj.ContentType)
	cmd.Printf("Updated:       %s\n", obj.Updated)
	cmd.Printf("MD5:           %s\n", obj.Md5Hash)
	cmd.Printf("Generation:    %d\n", obj.Generation)
	return nil
}

func runGCSRm(cmd *cobra.Command, args []string) error {
	bucket, object, err := objectURI(args[0])
	if err != nil {
		return err
	}
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	if err := client.DeleteObject(cmd.Context(), bucket, object); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	newRenderer(cmd).success("Deleted %s", storage.URI(bucket, object))
	return nil
}

func runGCSDownload(cmd *cobra.Command, args []string) error {
	bucket, object, err := objectURI(args[0])
	if err != nil {
		return err
	}
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	summary, err := client.DownloadFile(cmd.Context(), bucket, object, args[1])
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	newRenderer(cmd).success("%s", summary)
	return nil
}

func runGCSUpload(cmd *cobra.Command, args []string) error {
	bucket, object, err := objectURI(args[1])
	if err != nil {
		return err
	}
	client, err := storageClient(cmd)
	if err != nil {
		return err
	}
	_, summary, err := client.Upload(cmd.Context(), bucket, object, args[0])
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	newRenderer(cmd).success("%s", summary)
	return nil
}
