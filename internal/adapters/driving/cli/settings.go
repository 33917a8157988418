package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and change the defaults gcpkit runs with: project, Dataproc region,
credentials, retry budget and polling.

Settings are stored in ~/.gcpkit/config.toml. Any key can be overridden for a
single run with an environment variable, e.g. GCPKIT_DATAPROC_REGION.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a single setting.

Available keys:
  project               default project id
  dataproc.region       Dataproc region (default global)
  credentials.file      service account or authorized user JSON key
  storage.chunk_size    resumable upload chunk size in bytes
  retry.max_retries     retries per remote call after the first attempt
  retry.initial_backoff first pause between attempts (e.g. 500ms)
  retry.max_backoff     longest pause between attempts (e.g. 30s)
  poll.interval         pause between status reads (0 = per-service default)
  poll.timeout          bound on each wait (0 = wait indefinitely)`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if jsonOutput {
		return newRenderer(cmd).json(settings)
	}

	r := newRenderer(cmd)
	r.heading("Current Settings")
	cmd.Println()

	cmd.Println("[General]")
	cmd.Printf("  Project: %s\n", orNotSet(settings.Project))
	cmd.Printf("  Credentials: %s\n", orDefault(settings.CredentialsFile, "application default credentials"))
	cmd.Printf("  Upload chunk size: %d bytes\n", settings.ChunkSize)
	cmd.Println()

	cmd.Println("[Dataproc]")
	cmd.Printf("  Region: %s\n", settings.DataprocRegion)
	cmd.Println()

	cmd.Println("[Retry]")
	cmd.Printf("  Max retries: %d\n", settings.Retry.MaxRetries)
	cmd.Printf("  Initial backoff: %s\n", settings.Retry.InitialBackoff)
	cmd.Printf("  Max backoff: %s\n", settings.Retry.MaxBackoff)
	cmd.Println()

	cmd.Println("[Polling]")
	if settings.Poll.Interval > 0 {
		cmd.Printf("  Interval: %s\n", settings.Poll.Interval)
	} else {
		cmd.Printf("  Interval: per-service default\n")
	}
	if settings.Poll.Timeout > 0 {
		cmd.Printf("  Timeout: %s\n", settings.Poll.Timeout)
	} else {
		cmd.Printf("  Timeout: none\n")
	}
	cmd.Println()

	if err := settings.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	key, value := strings.ToLower(args[0]), strings.TrimSpace(args[1])

	switch key {
	case "project":
		if err := settingsService.SetProject(value); err != nil {
			return fmt.Errorf("failed to set project: %w", err)
		}
	case "dataproc.region":
		if err := settingsService.SetDataprocRegion(value); err != nil {
			return fmt.Errorf("failed to set region: %w", err)
		}
	case "retry.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return domain.Invalid("%s must be an integer", key)
		}
		if err := settingsService.SetMaxRetries(n); err != nil {
			return fmt.Errorf("failed to set retries: %w", err)
		}
	default:
		if err := updateSetting(key, value); err != nil {
			return err
		}
	}

	cmd.Printf("Set %s to %s\n", key, value)
	return nil
}

// updateSetting changes keys that have no dedicated setter.
func updateSetting(key, value string) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	switch key {
	case "credentials.file":
		settings.CredentialsFile = value
	case "storage.chunk_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return domain.Invalid("%s must be a positive integer", key)
		}
		settings.ChunkSize = n
	case "retry.initial_backoff", "retry.max_backoff", "poll.interval", "poll.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return domain.Invalid("%s must be a duration such as 500ms or 2m", key)
		}
		switch key {
		case "retry.initial_backoff":
			settings.Retry.InitialBackoff = d
		case "retry.max_backoff":
			settings.Retry.MaxBackoff = d
		case "poll.interval":
			settings.Poll.Interval = d
		case "poll.timeout":
			settings.Poll.Timeout = d
		}
	default:
		return domain.Invalid("unknown setting %q", key)
	}

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func orNotSet(s string) string {
	return orDefault(s, "(not set)")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
