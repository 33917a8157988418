// Package connectors assembles the Google service clients from application
// settings. Clients are opened lazily on first use, so commands that never
// touch an API never need credentials.
package connectors
