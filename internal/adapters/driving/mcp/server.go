package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/gcpkit/internal/logger"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "gcpkit"

// DefaultVersion is reported when the binary carries no build version.
const DefaultVersion = "dev"

// shutdownTimeout bounds how long in-flight HTTP sessions get to drain.
const shutdownTimeout = 5 * time.Second

const instructions = `gcpkit exposes Google Cloud REST listings and long-running job tracking.

Use list_resources to read any Google REST collection (for example
"b/my-bucket/o" on storage, or "projects/p/zones/z/instances" on compute).
Page tokens are followed for you; pass max_results to bound the output.

Jobs submitted without waiting (BigQuery jobs, Compute operations, Dataproc
operations and jobs) can be recorded with track_job, inspected with list_jobs
or the gcpkit://jobs resources, and waited on together with wait_jobs.`

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported to clients. Empty keeps DefaultVersion.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// Server serves gcpkit's raw listing and job tracking over MCP.
type Server struct {
	ports   *Ports
	version string
	server  *mcp.Server
}

// NewServer creates a server over ports. Both ports are required.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, version: DefaultVersion}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(
		&mcp.Implementation{Name: ServerName, Version: s.version},
		&mcp.ServerOptions{Instructions: instructions},
	)

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Version returns the version reported to clients.
func (s *Server) Version() string {
	return s.version
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("mcp: %s %s serving on stdio", ServerName, s.version)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP serves streamable HTTP on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Debug("mcp: %s %s serving on %s", ServerName, s.version, addr)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
