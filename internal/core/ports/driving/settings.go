package driving

import (
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
)

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings, filled with defaults.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetProject updates the default project.
	SetProject(project string) error

	// SetDataprocRegion updates the Dataproc region.
	SetDataprocRegion(region string) error

	// SetPoll updates the waiting defaults.
	SetPoll(interval, timeout time.Duration) error

	// SetMaxRetries updates the retry budget.
	SetMaxRetries(n int) error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
