// Package domain defines the core types shared by every gcpkit component.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Page / ListOptions: One page of a cursor-paginated listing and the
//     caller's limits on how much of it to consume
//   - Record: A decoded JSON object returned by a Google REST endpoint
//   - JobRef / JobStatus: A handle on a long-running resource and a snapshot
//     of its state
//   - Outcome: The per-reference result of a batch wait
//   - JobError / TransportError: The two runtime error families
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
