package mcp

import (
	"github.com/custodia-labs/gcpkit/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Raw lists arbitrary Google REST collections.
	Raw driving.RawLister

	// Jobs tracks and waits on long-running jobs.
	Jobs driving.JobTracker
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Raw == nil {
		return ErrMissingRawLister
	}
	if p.Jobs == nil {
		return ErrMissingJobTracker
	}
	return nil
}
