// Command gcpkit lists, submits and waits on Google Cloud resources.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/gcpkit/internal/adapters/driven/config/file"
	"github.com/custodia-labs/gcpkit/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/gcpkit/internal/adapters/driving/cli"
	"github.com/custodia-labs/gcpkit/internal/connectors"
	"github.com/custodia-labs/gcpkit/internal/connectors/google"
	"github.com/custodia-labs/gcpkit/internal/core/services"
	"github.com/custodia-labs/gcpkit/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=1.2.3".
var version = ""

// accessTokenEnv names the variable holding a static bearer token.
const accessTokenEnv = "GCPKIT_ACCESS_TOKEN"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cleanup, err := wire()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gcpkit: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	cli.SetVersion(version)
	if err := cli.Execute(ctx); err != nil {
		cleanup()
		os.Exit(1)
	}
}

// wire builds the services and injects them into the CLI. Google clients
// are opened on first use, so no credentials are needed until a command
// calls an API.
func wire() (func(), error) {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	cfg := google.Config{CredentialsFile: settings.CredentialsFile}
	if token := os.Getenv(accessTokenEnv); token != "" {
		cfg.TokenProvider = google.StaticTokenProvider{AccessToken: token}
	}
	factory := connectors.NewFactory(cfg, *settings)

	deps := cli.Services{
		Settings: settingsService,
		Raw:      factory,
		Clients:  factory,
	}

	cleanup := func() {}
	store, err := sqlite.NewStore("")
	if err != nil {
		// Only the jobs commands need the store.
		logger.Warn("job tracking unavailable: %v", err)
	} else {
		deps.Jobs = services.NewJobTracker(store.JobStore(), settings.Poll, factory.Pollers()...)
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Debug("closing store: %v", err)
			}
		}
	}

	cli.Configure(deps)
	return cleanup, nil
}
