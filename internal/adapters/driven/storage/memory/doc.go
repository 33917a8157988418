// Package memory provides in-memory implementations of driven storage ports.
// Nothing is persisted; state is lost when the process exits.
package memory
