package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	t.Run("missing raw lister returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{Jobs: &mockJobTracker{}})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingRawLister)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Raw: &mockRawLister{}, Jobs: &mockJobTracker{}})
		require.NoError(t, err)
		assert.NotNil(t, server)
	})
}

func TestPorts_Validate(t *testing.T) {
	t.Run("empty ports", func(t *testing.T) {
		ports := &Ports{}
		assert.ErrorIs(t, ports.Validate(), ErrMissingRawLister)
	})

	t.Run("missing job tracker", func(t *testing.T) {
		ports := &Ports{Raw: &mockRawLister{}}
		assert.ErrorIs(t, ports.Validate(), ErrMissingJobTracker)
	})

	t.Run("all ports is valid", func(t *testing.T) {
		ports := &Ports{Raw: &mockRawLister{}, Jobs: &mockJobTracker{}}
		assert.NoError(t, ports.Validate())
	})
}

func TestServer_Handshake(t *testing.T) {
	server, err := NewServer(&Ports{Raw: &mockRawLister{}, Jobs: &mockJobTracker{}}, WithVersion("1.2.3"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", server.Version())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	_, err = server.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	result := session.InitializeResult()
	require.NotNil(t, result)
	assert.Equal(t, ServerName, result.ServerInfo.Name)
	assert.Equal(t, "1.2.3", result.ServerInfo.Version)
	assert.Contains(t, result.Instructions, "list_resources")
	assert.Contains(t, result.Instructions, "wait_jobs")

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"list_resources", "track_job", "list_jobs", "wait_jobs"}, names)
}

func TestWithVersion_EmptyKeepsDefault(t *testing.T) {
	server, err := NewServer(&Ports{Raw: &mockRawLister{}, Jobs: &mockJobTracker{}}, WithVersion(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, server.Version())
}
