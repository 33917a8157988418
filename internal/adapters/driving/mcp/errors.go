// Package mcp provides an MCP (Model Context Protocol) server adapter for gcpkit.
// It lets AI assistants list Google Cloud resources and wait on tracked jobs.
package mcp

import "errors"

var (
	// ErrMissingRawLister is returned when the raw lister is not provided.
	ErrMissingRawLister = errors.New("mcp: raw lister is required")

	// ErrMissingJobTracker is returned when the job tracker is not provided.
	ErrMissingJobTracker = errors.New("mcp: job tracker is required")
)
