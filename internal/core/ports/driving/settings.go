package driving

import "github.com/custodia-labs/pdfkb/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings: defaults, then the config file,
	// then the environment.
	Get() (*domain.AppSettings, error)

	// Stored returns the settings without environment overrides.
	Stored() *domain.AppSettings

	// Save persists settings to the config file.
	Save(settings *domain.AppSettings) error

	// Set stores one dotted key after validating the resulting settings.
	Set(key, value string) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// Validate checks the effective settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig pings the configured provider.
	ValidateEmbeddingConfig() error
}
