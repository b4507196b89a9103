package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/harun/memindex/pkg/memory"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls to a failing provider.
	ErrCircuitOpen = errors.New("embedding circuit breaker is open")

	// ErrInvalidInput marks text a provider cannot embed.
	ErrInvalidInput = errors.New("invalid embedding input")

	// ErrInvalidEmbedding marks a vector that failed Validate.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)

// GuardConfig configures rate limiting and circuit breaking around a provider.
type GuardConfig struct {
	// RateLimit is requests per second. <= 0 disables limiting.
	RateLimit float64
	Burst     int

	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration

	// Dimension is the expected vector length; 0 uses the provider's Dimension().
	Dimension int
}

// DefaultGuardConfig returns the defaults used by New.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RateLimit:   10,
		Burst:       5,
		MaxFailures: 3,
		Timeout:     30 * time.Second,
	}
}

// Guard wraps a provider with a rate limiter, a circuit breaker and output
// validation. It implements memory.EmbeddingProvider.
type Guard struct {
	provider  memory.EmbeddingProvider
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	dimension int
	logger    zerolog.Logger
}

// NewGuard wraps provider.
func NewGuard(provider memory.EmbeddingProvider, cfg GuardConfig, logger zerolog.Logger) *Guard {
	defaults := DefaultGuardConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaults.MaxFailures
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = provider.Dimension()
	}

	g := &Guard{
		provider:  provider,
		dimension: cfg.Dimension,
		logger:    logger.With().Str("component", "embedding-guard").Logger(),
	}

	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	maxFailures := cfg.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedding",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Embedding circuit breaker state changed")
		},
	})

	return g
}

func (g *Guard) Dimension() int {
	return g.dimension
}

// State returns the breaker state: "closed", "half-open" or "open".
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func (g *Guard) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := g.provider.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := Validate(vec, g.dimension); err != nil {
			return nil, err
		}
		return vec, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	return result.([]float32), nil
}

// countsAsSuccess keeps caller cancellation and bad input from tripping the
// breaker; only provider faults count as failures.
func countsAsSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidEmbedding)
}

// Validate checks that vec is non-empty, finite and, when dimension > 0, of
// that length.
func Validate(vec []float32, dimension int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidEmbedding)
	}
	if dimension > 0 && len(vec) != dimension {
		return fmt.Errorf("%w: %d dimensions, want %d", ErrInvalidEmbedding, len(vec), dimension)
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: value %d is not finite", ErrInvalidEmbedding, i)
		}
	}
	return nil
}
