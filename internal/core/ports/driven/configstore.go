package driven

import "github.com/custodia-labs/classmate/internal/core/domain"

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML files) and validation.
type ConfigStore interface {
	// Load reads and validates configuration from storage.
	// A missing file yields domain.DefaultConfig.
	Load() (domain.Config, error)

	// Save validates and persists the configuration.
	Save(cfg domain.Config) error

	// Path returns the configuration file path.
	Path() string
}
