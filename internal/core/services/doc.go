// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The two engines every Google API adapter builds on live here:
// Iterator drives cursor-paginated listings and Waiter polls
// long-running resources until they are terminal.
//
// Services are pure Go with no CGO or external dependencies.
package services
