package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/classmate/internal/core/domain"
	"github.com/custodia-labs/classmate/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// Environment variables that override file values.
const (
	EnvGoogleClientID     = "CLASSMATE_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret = "CLASSMATE_GOOGLE_CLIENT_SECRET"
	EnvDataDir            = "CLASSMATE_DATA_DIR"
	EnvHTTPAddr           = "CLASSMATE_HTTP_ADDR"
	EnvOllamaURL          = "CLASSMATE_OLLAMA_URL"
	EnvVerbose            = "CLASSMATE_VERBOSE"
)

// ConfigStore is a TOML file-backed implementation of driven.ConfigStore.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	envFile  string
	lookup   func(string) (string, bool)
}

// Option configures a ConfigStore.
type Option func(*ConfigStore)

// WithEnvFile sets the .env file consulted on Load. Empty disables it.
func WithEnvFile(path string) Option {
	return func(s *ConfigStore) { s.envFile = path }
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(s *ConfigStore) { s.lookup = fn }
}

// NewConfigStore creates a config store for the given file path.
// If path is empty, defaults to ~/.classmate/config.toml.
func NewConfigStore(path string, opts ...Option) (*ConfigStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".classmate", "config.toml")
	}
	s := &ConfigStore{
		filePath: path,
		envFile:  ".env",
		lookup:   os.LookupEnv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load returns the defaults overlaid with the file, the .env file and the
// process environment, in that order. A missing file is not an error.
func (s *ConfigStore) Load() (domain.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg := domain.DefaultConfig()

	data, err := os.ReadFile(s.filePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: parsing %s: %w", domain.ErrInvalidInput, s.filePath, err)
		}
	}

	dotenv, err := s.readEnvFile()
	if err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg, func(key string) (string, bool) {
		if v, ok := s.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save validates cfg and writes it to the file.
func (s *ConfigStore) Save(cfg domain.Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// Write with restricted permissions; the file may hold a client secret.
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

func (s *ConfigStore) readEnvFile() (map[string]string, error) {
	if s.envFile == "" {
		return nil, nil
	}
	values, err := godotenv.Read(s.envFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.envFile, err)
	}
	return values, nil
}

func applyEnv(cfg *domain.Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvGoogleClientID); ok {
		cfg.Google.ClientID = v
	}
	if v, ok := lookup(EnvGoogleClientSecret); ok {
		cfg.Google.ClientSecret = v
	}
	if v, ok := lookup(EnvDataDir); ok {
		cfg.Storage.DataDir = v
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		cfg.Server.Addr = v
	}
	if v, ok := lookup(EnvOllamaURL); ok {
		cfg.Embedding.OllamaURL = v
	}
	if v, ok := lookup(EnvVerbose); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", domain.ErrInvalidInput, EnvVerbose, v)
		}
		cfg.Log.Verbose = b
	}
	return nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their TOML key.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterStructValidation(validateSync, domain.SyncConfig{})
		validate.RegisterStructValidation(validateQA, domain.QAConfig{})
	})
	return validate
}

// Validate checks field constraints and the cross-field rules.
func Validate(cfg domain.Config) error {
	if err := configValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: config: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: config: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func validateSync(sl validator.StructLevel) {
	c := sl.Current().Interface().(domain.SyncConfig)
	if c.InitialDelay <= 0 {
		sl.ReportError(c.InitialDelay, "initial_delay", "InitialDelay", "gt", "0")
	}
	if c.MaxDelay < c.InitialDelay {
		sl.ReportError(c.MaxDelay, "max_delay", "MaxDelay", "gtefield", "InitialDelay")
	}
}

// validateQA keeps confidence monotonic in the top score.
func validateQA(sl validator.StructLevel) {
	c := sl.Current().Interface().(domain.QAConfig)
	if c.SpreadPenalty >= 2*c.TopWeight {
		sl.ReportError(c.SpreadPenalty, "spread_penalty", "SpreadPenalty", "lt_2x_top_weight", "")
	}
}
