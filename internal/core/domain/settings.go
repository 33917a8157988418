package domain

import "time"

// DefaultDataprocRegion is the Dataproc region used when none is configured.
const DefaultDataprocRegion = "global"

// DefaultChunkSize is the upload chunk size for resumable media uploads.
const DefaultChunkSize = 2 * 1024 * 1024

// RetrySettings holds the retry budget for remote calls.
type RetrySettings struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialBackoff is the first pause between attempts.
	InitialBackoff time.Duration

	// MaxBackoff caps the pause between attempts.
	MaxBackoff time.Duration
}

// PollSettings holds defaults for waiting on long-running resources.
type PollSettings struct {
	// Interval is the delay between status fetches.
	// Zero means use the per-service default.
	Interval time.Duration

	// Timeout bounds the total wait. Zero means wait indefinitely.
	Timeout time.Duration
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Project is the default Google Cloud project id.
	Project string

	// DataprocRegion is the Dataproc region.
	DataprocRegion string

	// CredentialsFile is a service account or authorized user JSON key.
	// Empty means Application Default Credentials.
	CredentialsFile string

	// ChunkSize is the resumable upload chunk size in bytes.
	ChunkSize int

	// Retry holds the retry budget.
	Retry RetrySettings

	// Poll holds waiting defaults.
	Poll PollSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Project is left empty; commands that need one require it explicitly.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		DataprocRegion: DefaultDataprocRegion,
		ChunkSize:      DefaultChunkSize,
		Retry: RetrySettings{
			MaxRetries:     3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     30 * time.Second,
		},
		Poll: PollSettings{},
	}
}

// Validate checks the settings for values no remote call could honour.
func (s AppSettings) Validate() error {
	if s.ChunkSize < 0 {
		return Invalid("chunk size must not be negative")
	}
	if s.Retry.MaxRetries < 0 {
		return Invalid("max retries must not be negative")
	}
	if s.Poll.Interval < 0 || s.Poll.Timeout < 0 {
		return Invalid("poll durations must not be negative")
	}
	return nil
}
