package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/gcpkit/internal/connectors"
	"github.com/custodia-labs/gcpkit/internal/connectors/google/googletest"
	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// execute runs the root command with args and returns everything written
// to stdout and stderr. Flags are reset afterwards so tests stay independent.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if !f.Changed {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else if f.Value.Type() != "stringToString" {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// withServices swaps the injected services for the duration of a test.
func withServices(t *testing.T, s Services) {
	t.Helper()
	oldSettings, oldJobs, oldRaw, oldClients := settingsService, jobTracker, rawLister, clients
	Configure(s)
	t.Cleanup(func() {
		settingsService, jobTracker, rawLister, clients = oldSettings, oldJobs, oldRaw, oldClients
	})
}

// withFakeGoogle wires the commands to a fake Google endpoint with project "proj".
func withFakeGoogle(t *testing.T) *googletest.Server {
	t.Helper()
	srv := googletest.NewServer(t)
	settings := domain.DefaultAppSettings()
	settings.Project = "proj"
	settings.Retry.MaxRetries = 0
	settings.Poll.Interval = time.Millisecond
	withServices(t, Services{
		Settings: &mockSettingsService{settings: settings},
		Clients:  connectors.NewFactory(srv.Config(), settings),
	})
	return srv
}
