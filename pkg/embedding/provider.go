// Package embedding provides text embedding providers for the memory index.
package embedding

import (
	"fmt"
	"time"

	"github.com/harun/memindex/pkg/memory"
	"github.com/rs/zerolog"
)

// DefaultDimension matches the all-minilm model.
const DefaultDimension = memory.EmbeddingDimension

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
	ProviderNone   = "none"
)

// Config selects and configures a provider.
type Config struct {
	Provider           string
	Model              string
	Host               string
	APIKey             string
	Dimension          int
	RateLimit          float64
	Burst              int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

// New builds the configured provider wrapped in a Guard. The "none" provider
// returns a nil provider and no error.
func New(cfg Config, logger zerolog.Logger) (memory.EmbeddingProvider, error) {
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	var provider memory.EmbeddingProvider
	switch cfg.Provider {
	case ProviderOllama, "":
		provider = NewOllamaProvider(cfg.Host, cfg.Model, dimension)
	case ProviderOpenAI:
		p, err := NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.Host, dimension)
		if err != nil {
			return nil, err
		}
		provider = p
	case ProviderHash:
		provider = NewHashProvider(dimension)
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	logger.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Int("dimension", dimension).
		Msg("Embedding provider configured")

	return NewGuard(provider, GuardConfig{
		RateLimit:   cfg.RateLimit,
		Burst:       cfg.Burst,
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
		Dimension:   dimension,
	}, logger), nil
}
