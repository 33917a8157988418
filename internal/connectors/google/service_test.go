package google

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopes_EveryService(t *testing.T) {
	for service := range DefaultRateLimits {
		assert.NotEmpty(t, Scopes[service], "missing scope for %s", service)
	}
}

func TestConfig_ClientOptions(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{name: "zero value adds scope only", cfg: Config{}, want: 1},
		{name: "endpoint and no auth", cfg: Config{Endpoint: "http://localhost/", NoAuth: true}, want: 3},
		{name: "token provider", cfg: Config{TokenProvider: StaticTokenProvider{AccessToken: "t"}}, want: 2},
		{name: "credentials file", cfg: Config{CredentialsFile: "/tmp/key.json"}, want: 2},
		{name: "http client skips scope", cfg: Config{HTTPClient: http.DefaultClient}, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.cfg.ClientOptions(ctx, ServiceBigQuery), tt.want)
		})
	}
}

func TestNewHTTPClient_UsesProvidedClient(t *testing.T) {
	client := &http.Client{}
	got, endpoint, err := NewHTTPClient(context.Background(), Config{HTTPClient: client, Endpoint: "http://x/"}, ServiceStorage)

	require.NoError(t, err)
	assert.Same(t, client, got)
	assert.Equal(t, "http://x/", endpoint)
}

func TestNewServices_NoAuth(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Endpoint: "http://localhost:1/", NoAuth: true}

	bq, err := NewBigQueryService(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:1/", bq.BasePath)

	_, err = NewStorageService(ctx, cfg)
	require.NoError(t, err)
	_, err = NewDriveService(ctx, cfg)
	require.NoError(t, err)
	_, err = NewGmailService(ctx, cfg)
	require.NoError(t, err)
	_, err = NewComputeService(ctx, cfg)
	require.NoError(t, err)
	_, err = NewDataprocService(ctx, cfg)
	require.NoError(t, err)
}
