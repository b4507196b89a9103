package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Validator validates configuration values
type Validator struct {
	cronParser cron.Parser
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		cronParser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// ValidateBackend validates a storage backend name
func (v *Validator) ValidateBackend(backend string) error {
	switch backend {
	case BackendJSON, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("invalid storage backend %q (must be: json, sqlite)", backend)
	}
}

// ValidateProvider validates an embedding provider and its credentials
func (v *Validator) ValidateProvider(provider, apiKey string) error {
	switch provider {
	case "ollama", "hash", "none":
		return nil
	case "openai":
		if apiKey == "" {
			return fmt.Errorf("embedding.api_key is required for the openai provider")
		}
		if !strings.HasPrefix(apiKey, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
		return nil
	default:
		return fmt.Errorf("invalid embedding provider %q (must be: ollama, openai, hash, none)", provider)
	}
}

// ValidateThreshold validates a cosine similarity threshold
func (v *Validator) ValidateThreshold(threshold float64) error {
	if threshold < -1 || threshold > 1 {
		return fmt.Errorf("search.threshold must be between -1 and 1, got %v", threshold)
	}
	return nil
}

// ValidateSchedule validates a cron expression; empty disables scheduling
func (v *Validator) ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := v.cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid watch.rebuild_schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateAddr validates a listen address; empty disables the server
func (v *Validator) ValidateAddr(addr string) error {
	if addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid watch.metrics_addr %q: %w", addr, err)
	}
	return nil
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid logging.level %q", level)
	}
	return nil
}
