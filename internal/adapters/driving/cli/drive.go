package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	drv "google.golang.org/api/drive/v3"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/drive"
)

var (
	driveQuery     string
	driveName      string
	driveMimeTypes []string
	driveFolders   []string
	driveTrashed   bool
	driveParent    string
	driveOverwrite bool
)

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Google Drive files",
}

var driveLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List files",
	Args:  cobra.NoArgs,
	RunE:  runDriveLs,
}

var driveGetCmd = &cobra.Command{
	Use:   "get <file-id>",
	Short: "Show file metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriveGet,
}

var driveDownloadCmd = &cobra.Command{
	Use:   "download <file-id> <path>",
	Short: "Download a file; spreadsheets are exported as CSV",
	Args:  cobra.ExactArgs(2),
	RunE:  runDriveDownload,
}

var driveUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file, creating it or replacing one with the same name",
	Args:  cobra.ExactArgs(1),
	RunE:  runDriveUpload,
}

func init() {
	driveLsCmd.Flags().StringVarP(&driveQuery, "query", "q", "", "raw Drive search expression")
	driveLsCmd.Flags().StringVar(&driveName, "name", "", "exact file name")
	driveLsCmd.Flags().StringSliceVar(&driveMimeTypes, "mime", nil, "only these MIME types")
	driveLsCmd.Flags().StringSliceVar(&driveFolders, "folder", nil, "only children of these folder ids")
	driveLsCmd.Flags().BoolVar(&driveTrashed, "trashed", false, "include trashed files")
	driveUploadCmd.Flags().StringVar(&driveName, "name", "", "file name in Drive (default: local base name)")
	driveUploadCmd.Flags().StringVar(&driveParent, "parent", "", "parent folder id")
	driveUploadCmd.Flags().BoolVar(&driveOverwrite, "overwrite", false, "replace an existing file with the same name")

	driveCmd.AddCommand(driveLsCmd, driveGetCmd, driveDownloadCmd, driveUploadCmd)
	rootCmd.AddCommand(driveCmd)
}

func driveClient(cmd *cobra.Command) (*drive.Client, error) {
	c, err := requireClients()
	if err != nil {
		return nil, err
	}
	return c.Drive(cmd.Context())
}

func runDriveLs(cmd *cobra.Command, _ []string) error {
	client, err := driveClient(cmd)
	if err != nil {
		return err
	}
	q := drive.ListQuery{
		Q:              driveQuery,
		Name:           driveName,
		MimeTypes:      driveMimeTypes,
		FolderIDs:      driveFolders,
		IncludeTrashed: driveTrashed,
	}
	files, err := client.ListFiles(q, listOptions[*drv.File]()).Collect(cmd.Context())
	if err != nil {
		return fmt.Errorf("list files: %w", err)
	}
	return list(cmd, files, []string{"ID", "NAME", "TYPE", "SIZE", "MODIFIED"}, func(f *drv.File) []string {
		size := ""
		if f.Size > 0 {
			size = google.Size(uint64(f.Size))
		}
		return []string{f.Id, f.Name, f.MimeType, size, f.ModifiedTime}
	})
}

func runDriveGet(cmd *cobra.Command, args []string) error {
	client, err := driveClient(cmd)
	if err != nil {
		return err
	}
	file, err := client.GetFile(cmd.Context(), args[0], nil)
	if err != nil {
		return fmt.Errorf("get file: %w", err)
	}

	if jsonOutput {
		return newRenderer(cmd).json(file)
	}
	cmd.Printf("ID:        %s\n", file.Id)
	cmd.Printf("Name:      %s\n", file.Name)
	cmd.Printf("Type:      %s\n", file.MimeType)
	cmd.Printf("Modified:  %s\n", file.ModifiedTime)
	cmd.Printf("URL:       %s\n", drive.WebURL(file))
	return nil
}

func runDriveDownload(cmd *cobra.Command, args []string) error {
	client, err := driveClient(cmd)
	if err != nil {
		return err
	}

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("create %s: %w", args[1], err)
	}
	summary, err := client.Download(cmd.Context(), args[0], f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	newRenderer(cmd).success("%s", summary)
	return nil
}

func runDriveUpload(cmd *cobra.Command, args []string) error {
	client, err := driveClient(cmd)
	if err != nil {
		return err
	}
	file, summary, err := client.Upload(cmd.Context(), args[0], drive.UploadOptions{
		Name:      driveName,
		Parent:    driveParent,
		Overwrite: driveOverwrite,
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	r := newRenderer(cmd)
	r.success("%s", summary)
	r.muted("%s", drive.WebURL(file))
	return nil
}
