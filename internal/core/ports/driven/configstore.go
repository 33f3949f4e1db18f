package driven

import "github.com/custodia-labs/pdfkb/internal/core/domain"

// ConfigStore provides access to persisted application configuration.
// Keys are dotted paths such as "retrieval.top_k".
type ConfigStore interface {
	// Get retrieves a configuration value by key.
	// Returns the value and a boolean indicating if the key exists.
	Get(key string) (any, bool)

	// GetString retrieves a string value, or "" when absent.
	GetString(key string) string

	// GetInt retrieves an integer value, or 0 when absent.
	GetInt(key string) int

	// GetFloat retrieves a floating point value, or 0 when absent.
	GetFloat(key string) float64

	// GetBool retrieves a boolean value, or false when absent.
	GetBool(key string) bool

	// Set stores a configuration value. File-backed stores persist immediately.
	Set(key string, value any) error

	// Delete removes a key so readers fall back to defaults.
	Delete(key string) error

	// Save persists the current configuration to storage.
	Save() error

	// Load reads configuration from storage.
	Load() error

	// Path returns the configuration file path.
	Path() string
}

// SettingsOverlay applies higher-precedence values, such as environment
// variables, on top of stored settings.
type SettingsOverlay interface {
	Apply(settings *domain.AppSettings) error
}
