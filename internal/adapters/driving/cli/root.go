// Package cli implements the gcpkit command line with cobra.
//
// Services are injected once at startup through Configure; every command
// resolves the Google clients it needs lazily so commands that never touch
// an API never need credentials.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/bigquery"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/compute"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/dataproc"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/drive"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/gmail"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/storage"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driving"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=1.2.3".
var version = "dev"

// Clients opens the Google service clients.
type Clients interface {
	BigQuery(ctx context.Context) (*bigquery.Client, error)
	Storage(ctx context.Context) (*storage.Client, error)
	Drive(ctx context.Context) (*drive.Client, error)
	Gmail(ctx context.Context) (*gmail.Client, error)
	Compute(ctx context.Context, projectID string) (*compute.Client, error)
	Dataproc(ctx context.Context) (*dataproc.Client, error)
}

// Services holds everything the commands drive.
type Services struct {
	Settings driving.SettingsService
	Jobs     driving.JobTracker
	Raw      driving.RawLister
	Clients  Clients
}

var (
	settingsService driving.SettingsService
	jobTracker      driving.JobTracker
	rawLister       driving.RawLister
	clients         Clients
)

// Global flags.
var (
	verbose     bool
	jsonOutput  bool
	projectFlag string
	maxResults  int
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "gcpkit",
	Short: "Google Cloud REST toolkit",
	Long: `gcpkit lists, submits and waits on Google Cloud resources across
BigQuery, Cloud Storage, Drive, Gmail, Compute Engine and Dataproc.

Listings follow page tokens transparently, long-running jobs can be waited
on one at a time or tracked and waited on later as a batch, and every remote
call is retried with exponential backoff.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging on stderr")
	flags.BoolVar(&jsonOutput, "json", false, "output raw JSON")
	flags.StringVarP(&projectFlag, "project", "p", "", "Google Cloud project (default from settings)")
	flags.IntVarP(&maxResults, "max", "n", 0, "maximum number of listed items (0 = all)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
}

// Configure injects the services commands run against.
func Configure(s Services) {
	settingsService = s.Settings
	jobTracker = s.Jobs
	rawLister = s.Raw
	clients = s.Clients
}

// Execute runs the root command. Metrics are written whether or not the
// command succeeded.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if werr := writeMetrics(); werr != nil {
		if err == nil {
			return werr
		}
		logger.Warn("%v", werr)
	}
	return err
}

func writeMetrics() error {
	if metricsFile == "" {
		return nil
	}
	if err := google.WriteMetrics(metricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	logger.Debug("wrote metrics to %s", metricsFile)
	return nil
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

func requireClients() (Clients, error) {
	if clients == nil {
		return nil, errors.New("google clients not configured")
	}
	return clients, nil
}

// project resolves the project from an argument, the --project flag or settings.
func project(args ...string) (string, error) {
	for _, a := range args {
		if a != "" {
			return a, nil
		}
	}
	if projectFlag != "" {
		return projectFlag, nil
	}
	if settingsService != nil {
		if s, err := settingsService.Get(); err == nil && s.Project != "" {
			return s.Project, nil
		}
	}
	return "", errors.New("no project: pass --project or run 'gcpkit settings set project ID'")
}

// argOr returns args[i] or "" if absent.
func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
