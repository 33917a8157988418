// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - PageFetcher: Fetches one page of a cursor-paginated listing
//   - ResourceFetcher: Fetches the current state of a long-running resource
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - JobStore: Persists submitted job references. Without it, job tracking is disabled.
//   - JobPoller: Reads a status snapshot for one service. Services without a poller cannot be tracked.
//   - TokenProvider: Supplies a static access token. Without it, Application Default Credentials are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
