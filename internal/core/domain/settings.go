package domain

import "time"

// Config is the full application configuration.
// It is loaded from TOML by the config store and validated before use.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Google    GoogleConfig    `toml:"google"`
	Sync      SyncConfig      `toml:"sync"`
	Index     IndexConfig     `toml:"index"`
	Embedding EmbeddingConfig `toml:"embedding"`
	QA        QAConfig        `toml:"qa"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr       string `toml:"addr" validate:"required"`
	UserHeader string `toml:"user_header" validate:"required"`
}

// StorageConfig configures persistence.
type StorageConfig struct {
	// DataDir holds the SQLite database. Empty selects ~/.classmate/data.
	DataDir string `toml:"data_dir"`

	// Ephemeral keeps everything in memory and writes nothing to disk.
	Ephemeral bool `toml:"ephemeral"`
}

// GoogleConfig configures the Google Classroom connector.
type GoogleConfig struct {
	ClientID          string  `toml:"client_id"`
	ClientSecret      string  `toml:"client_secret"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gt=0"`
	PageSize          int64   `toml:"page_size" validate:"gte=1,lte=1000"`
}

// SyncConfig configures the sync engine and its backoff policy.
type SyncConfig struct {
	MaxAttempts  int      `toml:"max_attempts" validate:"gte=1"`
	InitialDelay Duration `toml:"initial_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	Multiplier   float64  `toml:"multiplier" validate:"gte=1"`
	Jitter       float64  `toml:"jitter" validate:"gte=0,lte=1"`
	Concurrency  int      `toml:"concurrency" validate:"gte=1"`
	Schedule     string   `toml:"schedule"`
}

// IndexConfig configures chunking and index writes.
type IndexConfig struct {
	ChunkSize    int `toml:"chunk_size" validate:"gte=50"`
	ChunkOverlap int `toml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
	EmbedRetries int `toml:"embed_retries" validate:"gte=0,lte=10"`
	WriteRetries int `toml:"write_retries" validate:"gte=0,lte=10"`
}

// EmbeddingConfig pins the embedding model for the whole index.
type EmbeddingConfig struct {
	Provider   string `toml:"provider" validate:"oneof=hashing ollama"`
	Model      string `toml:"model" validate:"required"`
	Dimensions int    `toml:"dimensions" validate:"gte=8"`
	OllamaURL  string `toml:"ollama_url" validate:"omitempty,url"`
	CacheSize  int    `toml:"cache_size" validate:"gte=0"`
}

// QAConfig tunes retrieval and confidence scoring.
type QAConfig struct {
	TopK           int     `toml:"top_k" validate:"gte=1,lte=50"`
	MinRelevance   float64 `toml:"min_relevance" validate:"gte=0,lte=1"`
	TopWeight      float64 `toml:"top_weight" validate:"gte=0,lte=1"`
	SpreadPenalty  float64 `toml:"spread_penalty" validate:"gte=0"`
	HighConfidence float64 `toml:"high_confidence" validate:"gte=0,lte=1"`
	LowConfidence  float64 `toml:"low_confidence" validate:"gte=0,lte=1,ltefield=HighConfidence"`
	ExcerptLength  int     `toml:"excerpt_length" validate:"gte=20"`
	AnswerLength   int     `toml:"answer_length" validate:"gte=50"`
	MaxSources     int     `toml:"max_sources" validate:"gte=1"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Verbose bool `toml:"verbose"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:       "127.0.0.1:8080",
			UserHeader: "X-User-ID",
		},
		Google: GoogleConfig{
			RequestsPerSecond: 5,
			PageSize:          100,
		},
		Sync: SyncConfig{
			MaxAttempts:  5,
			InitialDelay: Duration(4 * time.Second),
			MaxDelay:     Duration(60 * time.Second),
			Multiplier:   2,
			Jitter:       0.5,
			Concurrency:  4,
			Schedule:     "@every 30m",
		},
		Index: IndexConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			EmbedRetries: 3,
			WriteRetries: 3,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hashing",
			Model:      "classmate-hash-v1",
			Dimensions: 384,
			OllamaURL:  "http://localhost:11434",
			CacheSize:  512,
		},
		QA: DefaultQAConfig(),
	}
}

// DefaultQAConfig returns the default retrieval and confidence tuning.
func DefaultQAConfig() QAConfig {
	return QAConfig{
		TopK:           5,
		MinRelevance:   0.2,
		TopWeight:      0.6,
		SpreadPenalty:  0.5,
		HighConfidence: 0.75,
		LowConfidence:  0.5,
		ExcerptLength:  200,
		AnswerLength:   500,
		MaxSources:     5,
	}
}

// Duration is a time.Duration that reads and writes as a string ("4s", "1m").
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
