package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harun/memindex/internal/observability"
	"github.com/harun/memindex/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultThreshold  = 0.3
	DefaultMaxResults = 5
)

// SearchOptions configures semantic search. A zero value keeps any score >= 0;
// start from DefaultSearchOptions for the 0.3 threshold.
type SearchOptions struct {
	Threshold  float64 // minimum cosine similarity
	MaxResults int     // <= 0 means DefaultMaxResults
}

// DefaultSearchOptions returns the default threshold and result limit.
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Threshold:  DefaultThreshold,
		MaxResults: DefaultMaxResults,
	}
}

// SearchResult represents a single search result
type SearchResult struct {
	Score       float64  `json:"score"`
	Path        string   `json:"path"`
	GroupName   string   `json:"group"`
	FileName    string   `json:"file"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// SearchEngine ranks indexed notes by cosine similarity to a query.
type SearchEngine struct {
	repo     Repository
	embedder EmbeddingProvider
	logger   zerolog.Logger
}

// NewSearchEngine creates a search engine over repo.
func NewSearchEngine(repo Repository, embedder EmbeddingProvider, logger zerolog.Logger) *SearchEngine {
	observability.EnsureRegistered()

	return &SearchEngine{
		repo:     repo,
		embedder: embedder,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

// Search embeds query and returns entries scoring at least opts.Threshold,
// best first. A missing or unreadable index yields ErrNoIndex; no matches
// yields an empty slice and nil.
func (e *SearchEngine) Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.search",
		attribute.String("query", query),
		attribute.Float64("threshold", opts.Threshold),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return []SearchResult{}, ErrEmptyQuery
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	idx, err := e.repo.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "index not available")
		return []SearchResult{}, fmt.Errorf("%w: %w", ErrNoIndex, err)
	}

	if e.embedder == nil {
		return []SearchResult{}, errors.New("embed query: no embedding provider configured")
	}
	queryVec, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query embedding failed")
		return []SearchResult{}, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVec) == 0 {
		return []SearchResult{}, errors.New("embed query: provider returned an empty vector")
	}

	results := make([]SearchResult, 0)
	skipped := 0
	for _, entry := range idx.Sorted() {
		vec, ok := entry.Embedding.Get()
		if !ok || len(vec) != len(queryVec) {
			skipped++
			continue
		}

		score := CosineSimilarity(queryVec, vec)
		// NaN scores from a non-finite query vector fail this check too.
		if !(score >= opts.Threshold) {
			continue
		}

		results = append(results, SearchResult{
			Score:       score,
			Path:        entry.Path,
			GroupName:   entry.GroupName,
			FileName:    entry.FileName,
			Description: entry.Description,
			Tags:        entry.Tags,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	elapsed := time.Since(start)
	observability.RecordSearch(elapsed, len(results))

	logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Int("skipped_entries", skipped).
		Dur("duration", elapsed).
		Msg("Search completed")

	return results, nil
}
