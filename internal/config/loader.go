package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "MEMINDEX"

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
}

// NewLoader creates a new config loader. An empty configPath means
// ~/.memindex/memindex.json.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// WithEnvFile sets the dotenv file read before environment overrides are
// applied. An empty path disables dotenv loading.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads defaults, then the config file if it exists, then MEMINDEX_*
// environment variables. Paths are resolved and the result validated.
func (l *Loader) Load() (*Config, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configPath, err := l.GetConfigPath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ResolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers every key so that environment variables are seen by
// Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("notes_dir", cfg.NotesDir)

	v.SetDefault("storage.backend", cfg.Storage.Backend)
	v.SetDefault("storage.path", cfg.Storage.Path)

	v.SetDefault("embedding.provider", cfg.Embedding.Provider)
	v.SetDefault("embedding.model", cfg.Embedding.Model)
	v.SetDefault("embedding.host", cfg.Embedding.Host)
	v.SetDefault("embedding.api_key", cfg.Embedding.APIKey)
	v.SetDefault("embedding.dimension", cfg.Embedding.Dimension)
	v.SetDefault("embedding.rate_limit", cfg.Embedding.RateLimit)
	v.SetDefault("embedding.burst", cfg.Embedding.Burst)
	v.SetDefault("embedding.breaker_max_failures", cfg.Embedding.BreakerMaxFailures)
	v.SetDefault("embedding.breaker_timeout", cfg.Embedding.BreakerTimeout)

	v.SetDefault("search.threshold", cfg.Search.Threshold)
	v.SetDefault("search.max_results", cfg.Search.MaxResults)
	v.SetDefault("related.max_results", cfg.Related.MaxResults)

	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("watch.rebuild_schedule", cfg.Watch.RebuildSchedule)
	v.SetDefault("watch.metrics_addr", cfg.Watch.MetricsAddr)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.pretty", cfg.Logging.Pretty)
	v.SetDefault("logging.redaction", cfg.Logging.Redaction)
	v.SetDefault("logging.audit_file", cfg.Logging.AuditFile)

	v.SetDefault("tracing.enabled", cfg.Tracing.Enabled)
	v.SetDefault("tracing.sample_ratio", cfg.Tracing.SampleRatio)
}

// Save writes cfg to the config path
func (l *Loader) Save(cfg *Config) error {
	configPath, err := l.GetConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("notes_dir", cfg.NotesDir)
	v.Set("storage", cfg.Storage)
	v.Set("embedding", map[string]interface{}{
		"provider":             cfg.Embedding.Provider,
		"model":                cfg.Embedding.Model,
		"host":                 cfg.Embedding.Host,
		"api_key":              cfg.Embedding.APIKey,
		"dimension":            cfg.Embedding.Dimension,
		"rate_limit":           cfg.Embedding.RateLimit,
		"burst":                cfg.Embedding.Burst,
		"breaker_max_failures": cfg.Embedding.BreakerMaxFailures,
		"breaker_timeout":      cfg.Embedding.BreakerTimeout.String(),
	})
	v.Set("search", cfg.Search)
	v.Set("related", cfg.Related)
	v.Set("watch", map[string]interface{}{
		"debounce":         cfg.Watch.Debounce.String(),
		"rebuild_schedule": cfg.Watch.RebuildSchedule,
		"metrics_addr":     cfg.Watch.MetricsAddr,
	})
	v.Set("logging", cfg.Logging)
	v.Set("tracing", cfg.Tracing)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() (string, error) {
	if l.configPath != "" {
		return ExpandHome(l.configPath)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, defaultConfigDir, "memindex.json"), nil
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
