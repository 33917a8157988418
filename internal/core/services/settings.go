package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/gcpkit/internal/core/domain"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driven"
	"github.com/custodia-labs/gcpkit/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
const (
	KeyProject         = "project"
	KeyDataprocRegion  = "dataproc.region"
	KeyCredentialsFile = "credentials.file"
	KeyChunkSize       = "storage.chunk_size"
	KeyMaxRetries      = "retry.max_retries"
	KeyInitialBackoff  = "retry.initial_backoff_ms"
	KeyMaxBackoff      = "retry.max_backoff_ms"
	KeyPollInterval    = "poll.interval_ms"
	KeyPollTimeout     = "poll.timeout_s"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{
		configStore: configStore,
	}
}

// Get retrieves current application settings.
// Missing or invalid values fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Project:         s.configStore.GetString(KeyProject), // No default - commands require it explicitly
		DataprocRegion:  s.getString(KeyDataprocRegion, defaults.DataprocRegion),
		CredentialsFile: s.configStore.GetString(KeyCredentialsFile),
		ChunkSize:       s.getPositiveInt(KeyChunkSize, defaults.ChunkSize),
		Retry: domain.RetrySettings{
			MaxRetries:     s.getNonNegativeInt(KeyMaxRetries, defaults.Retry.MaxRetries),
			InitialBackoff: s.getDuration(KeyInitialBackoff, time.Millisecond, defaults.Retry.InitialBackoff),
			MaxBackoff:     s.getDuration(KeyMaxBackoff, time.Millisecond, defaults.Retry.MaxBackoff),
		},
		Poll: domain.PollSettings{
			Interval: s.getDuration(KeyPollInterval, time.Millisecond, defaults.Poll.Interval),
			Timeout:  s.getDuration(KeyPollTimeout, time.Second, defaults.Poll.Timeout),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	values := []struct {
		key   string
		value any
	}{
		{KeyProject, settings.Project},
		{KeyDataprocRegion, settings.DataprocRegion},
		{KeyCredentialsFile, settings.CredentialsFile},
		{KeyChunkSize, settings.ChunkSize},
		{KeyMaxRetries, settings.Retry.MaxRetries},
		{KeyInitialBackoff, int(settings.Retry.InitialBackoff / time.Millisecond)},
		{KeyMaxBackoff, int(settings.Retry.MaxBackoff / time.Millisecond)},
		{KeyPollInterval, int(settings.Poll.Interval / time.Millisecond)},
		{KeyPollTimeout, int(settings.Poll.Timeout / time.Second)},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	return nil
}

// SetProject updates the default project.
func (s *SettingsService) SetProject(project string) error {
	if project == "" {
		return domain.Invalid("project must not be empty")
	}
	return s.update(func(settings *domain.AppSettings) {
		settings.Project = project
	})
}

// SetDataprocRegion updates the Dataproc region.
func (s *SettingsService) SetDataprocRegion(region string) error {
	if region == "" {
		region = domain.DefaultDataprocRegion
	}
	return s.update(func(settings *domain.AppSettings) {
		settings.DataprocRegion = region
	})
}

// SetPoll updates the waiting defaults.
func (s *SettingsService) SetPoll(interval, timeout time.Duration) error {
	if interval < 0 || timeout < 0 {
		return domain.Invalid("poll durations must not be negative")
	}
	return s.update(func(settings *domain.AppSettings) {
		settings.Poll.Interval = interval
		settings.Poll.Timeout = timeout
	})
}

// SetMaxRetries updates the retry budget.
func (s *SettingsService) SetMaxRetries(n int) error {
	if n < 0 {
		return domain.Invalid("max retries must not be negative")
	}
	return s.update(func(settings *domain.AppSettings) {
		settings.Retry.MaxRetries = n
	})
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (s *SettingsService) update(fn func(*domain.AppSettings)) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	fn(settings)
	return s.Save(settings)
}

func (s *SettingsService) getString(key, defaultVal string) string {
	if val := s.configStore.GetString(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getPositiveInt(key string, defaultVal int) int {
	if val := s.configStore.GetInt(key); val > 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getNonNegativeInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	if val := s.configStore.GetInt(key); val >= 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	if val := s.configStore.GetInt(key); val >= 0 {
		return time.Duration(val) * unit
	}
	return defaultVal
}
