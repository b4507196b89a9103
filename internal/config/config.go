package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	IndexFileName    = "memory-index.json"
	IndexDBFileName  = "memory-index.db"
	BackendJSON      = "json"
	BackendSQLite    = "sqlite"
	defaultNotesDir  = "~/.agents/brain"
	defaultConfigDir = ".memindex"
)

// Config represents the memindex configuration
type Config struct {
	// Root directory of the notes tree
	NotesDir string `json:"notes_dir" mapstructure:"notes_dir"`

	Storage   StorageConfig   `json:"storage" mapstructure:"storage"`
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`
	Search    SearchConfig    `json:"search" mapstructure:"search"`
	Related   RelatedConfig   `json:"related" mapstructure:"related"`
	Watch     WatchConfig     `json:"watch" mapstructure:"watch"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging"`
	Tracing   TracingConfig   `json:"tracing" mapstructure:"tracing"`
}

// StorageConfig selects where the index is persisted
type StorageConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // json, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider           string        `json:"provider" mapstructure:"provider"` // ollama, openai, hash, none
	Model              string        `json:"model" mapstructure:"model"`
	Host               string        `json:"host" mapstructure:"host"`
	APIKey             string        `json:"api_key" mapstructure:"api_key"`
	Dimension          int           `json:"dimension" mapstructure:"dimension"`
	RateLimit          float64       `json:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Burst              int           `json:"burst" mapstructure:"burst"`
	BreakerMaxFailures uint32        `json:"breaker_max_failures" mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `json:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// SearchConfig holds semantic search defaults
type SearchConfig struct {
	Threshold  float64 `json:"threshold" mapstructure:"threshold"`
	MaxResults int     `json:"max_results" mapstructure:"max_results"`
}

// RelatedConfig holds related-note matching defaults
type RelatedConfig struct {
	MaxResults int `json:"max_results" mapstructure:"max_results"`
}

// WatchConfig holds settings for the watch command
type WatchConfig struct {
	Debounce        time.Duration `json:"debounce" mapstructure:"debounce"`
	RebuildSchedule string        `json:"rebuild_schedule" mapstructure:"rebuild_schedule"` // cron expression, empty disables
	MetricsAddr     string        `json:"metrics_addr" mapstructure:"metrics_addr"`         // empty disables the HTTP server
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		NotesDir: defaultNotesDir,
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		Embedding: EmbeddingConfig{
			Provider:           "hash",
			Dimension:          384,
			RateLimit:          10,
			Burst:              5,
			BreakerMaxFailures: 3,
			BreakerTimeout:     30 * time.Second,
		},
		Search: SearchConfig{
			Threshold:  0.3,
			MaxResults: 5,
		},
		Related: RelatedConfig{
			MaxResults: 5,
		},
		Watch: WatchConfig{
			Debounce:    500 * time.Millisecond,
			MetricsAddr: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:     "warn",
			Pretty:    true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Embedding.APIKey != "" {
		masked.Embedding.APIKey = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// ResolvePaths expands "~" and fills in the default index location.
func (c *Config) ResolvePaths() error {
	notesDir, err := ExpandHome(c.NotesDir)
	if err != nil {
		return err
	}
	c.NotesDir = notesDir

	if c.Storage.Path == "" {
		name := IndexFileName
		if c.Storage.Backend == BackendSQLite {
			name = IndexDBFileName
		}
		c.Storage.Path = filepath.Join(c.NotesDir, name)
	}
	if c.Storage.Path, err = ExpandHome(c.Storage.Path); err != nil {
		return err
	}
	if c.Logging.File, err = ExpandHome(c.Logging.File); err != nil {
		return err
	}
	if c.Logging.AuditFile, err = ExpandHome(c.Logging.AuditFile); err != nil {
		return err
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if strings.TrimSpace(c.NotesDir) == "" {
		return fmt.Errorf("notes_dir is required")
	}
	if err := v.ValidateBackend(c.Storage.Backend); err != nil {
		return err
	}
	if err := v.ValidateProvider(c.Embedding.Provider, c.Embedding.APIKey); err != nil {
		return err
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit cannot be negative")
	}
	if c.Embedding.BreakerTimeout < 0 {
		return fmt.Errorf("embedding.breaker_timeout cannot be negative")
	}
	if err := v.ValidateThreshold(c.Search.Threshold); err != nil {
		return err
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Related.MaxResults <= 0 {
		return fmt.Errorf("related.max_results must be positive, got %d", c.Related.MaxResults)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce cannot be negative")
	}
	if err := v.ValidateSchedule(c.Watch.RebuildSchedule); err != nil {
		return err
	}
	if err := v.ValidateAddr(c.Watch.MetricsAddr); err != nil {
		return err
	}
	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	return nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
