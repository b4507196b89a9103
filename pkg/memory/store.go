package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/harun/memindex/internal/observability"
	"github.com/harun/memindex/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "memindex.memory"

// NoteStatus is the outcome of indexing one note during a rebuild.
type NoteStatus string

const (
	StatusAccepted NoteStatus = "accepted"
	StatusSkipped  NoteStatus = "skipped"
)

// NoteResult records what happened to one note during a rebuild.
type NoteResult struct {
	Path     string
	Status   NoteStatus
	Reason   string // set when skipped
	Embedded bool
	EmbedErr error // embedding was attempted and failed
}

// RebuildSummary aggregates the per-note results of a full rebuild.
type RebuildSummary struct {
	RunID         string
	Index         *Index
	Results       []NoteResult
	Accepted      int
	Skipped       int
	Embedded      int
	EmbedFailures int
	Duration      time.Duration
}

// RebuildOptions configures a full rebuild.
type RebuildOptions struct {
	Embedder EmbeddingProvider // optional; nil skips embedding generation
}

// UpsertOptions configures a single-note upsert.
type UpsertOptions struct {
	Embedding []float32         // precomputed vector, attached when well-formed
	Embedder  EmbeddingProvider // used only when Embedding is empty
}

// StoreConfig holds Store dependencies.
type StoreConfig struct {
	Repository Repository
	Source     NoteSource
	Logger     zerolog.Logger
	Dimension  int              // expected embedding length; 0 accepts any length
	Clock      func() time.Time // defaults to time.Now
}

// Store owns the persisted index: full rebuilds, upserts and read access.
type Store struct {
	repo      Repository
	source    NoteSource
	logger    zerolog.Logger
	dimension int
	now       func() time.Time
	mu        sync.Mutex
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("note source is required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Store{
		repo:      cfg.Repository,
		source:    cfg.Source,
		logger:    cfg.Logger.With().Str("component", "index-store").Logger(),
		dimension: cfg.Dimension,
		now:       clock,
	}, nil
}

// Load returns the persisted index.
func (s *Store) Load(ctx context.Context) (*Index, error) {
	return s.repo.Load(ctx)
}

// Rebuild discards the current index and indexes every note from the source.
// Notes without valid metadata and failed embeddings are recorded in the
// summary and skipped; they never abort the rebuild.
func (s *Store) Rebuild(ctx context.Context, opts RebuildOptions) (*RebuildSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx = tracing.WithRunID(ctx, tracing.NewRunID())
	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.rebuild",
		attribute.Bool("embed", opts.Embedder != nil),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	logger.Info().Bool("embed", opts.Embedder != nil).Msg("Starting rebuild")

	paths, err := s.source.ListNotes(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	idx := NewIndex(start)
	summary := &RebuildSummary{
		RunID:   tracing.GetRunID(ctx),
		Results: make([]NoteResult, 0, len(paths)),
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "rebuild cancelled")
			return nil, err
		}

		entry, result := s.indexNote(ctx, logger, path, opts.Embedder)
		summary.Results = append(summary.Results, result)
		observability.RecordNoteProcessed(string(result.Status))

		if result.Status == StatusSkipped {
			summary.Skipped++
			continue
		}

		idx.Put(entry)
		summary.Accepted++
		if result.Embedded {
			summary.Embedded++
		}
		if result.EmbedErr != nil {
			summary.EmbedFailures++
		}
	}

	summary.Duration = s.now().Sub(start)
	idx.Stats.LastScanDurationMs = summary.Duration.Milliseconds()
	idx.LastFullScanAt = s.now().UTC()

	if err := s.withLock(ctx, func() error { return s.repo.Save(ctx, idx) }); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	summary.Index = idx
	observability.RecordRebuild(summary.Duration)
	observability.RecordIndexAudit(ctx, "rebuild", true, map[string]interface{}{
		"run_id":   summary.RunID,
		"accepted": summary.Accepted,
		"skipped":  summary.Skipped,
	})
	observability.SetIndexEntries(len(idx.Entries))

	logger.Info().
		Int("accepted", summary.Accepted).
		Int("skipped", summary.Skipped).
		Int("embedded", summary.Embedded).
		Int("embed_failures", summary.EmbedFailures).
		Dur("duration", summary.Duration).
		Msg("Rebuild completed")

	return summary, nil
}

// indexNote turns one note into an entry. It never fails; problems are
// reported through the result.
func (s *Store) indexNote(ctx context.Context, logger zerolog.Logger, path string, embedder EmbeddingProvider) (Entry, NoteResult) {
	result := NoteResult{Path: path}

	note, err := s.source.ReadNote(ctx, path)
	if err != nil {
		result.Status = StatusSkipped
		result.Reason = err.Error()
		if errors.Is(err, ErrNoMetadata) {
			result.Reason = ErrNoMetadata.Error()
		}
		logger.Warn().Err(err).Str("path", path).Msg("Skipping note")
		return Entry{}, result
	}

	entry := buildEntry(path, note)
	result.Status = StatusAccepted

	if embedder != nil && note.Description != "" {
		vec, err := s.embed(ctx, embedder, note.Description)
		if err != nil {
			result.EmbedErr = err
			observability.RecordEmbeddingFailure()
			logger.Warn().Err(err).Str("file", entry.FileName).Msg("Failed to embed note")
		} else {
			entry.Embedding = NewEmbedding(vec)
			result.Embedded = true
		}
	}

	return entry, result
}

// Upsert re-indexes a single note and persists the index. A missing or
// invalid persisted index is replaced by a fresh one. Notes without valid
// metadata return an error wrapping ErrNoMetadata and leave the index untouched.
func (s *Store) Upsert(ctx context.Context, notePath string, opts UpsertOptions) (Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartSpan(
		ctx,
		tracerName,
		"memory.upsert",
		attribute.String("path", notePath),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, s.logger).With().Str("path", notePath).Logger()

	s.mu.Lock()
	defer s.mu.Unlock()

	var entry Entry
	err := s.withLock(ctx, func() error {
		idx := s.loadOrFresh(ctx, logger)

		note, err := s.source.ReadNote(ctx, notePath)
		if err != nil {
			return fmt.Errorf("failed to read note %s: %w", notePath, err)
		}

		entry = buildEntry(notePath, note)
		switch {
		case len(opts.Embedding) > 0:
			if err := s.validateVector(opts.Embedding); err != nil {
				logger.Warn().Err(err).Msg("Ignoring malformed embedding")
			} else {
				entry.Embedding = NewEmbedding(opts.Embedding)
			}
		case opts.Embedder != nil && note.Description != "":
			vec, err := s.embed(ctx, opts.Embedder, note.Description)
			if err != nil {
				observability.RecordEmbeddingFailure()
				logger.Warn().Err(err).Msg("Failed to embed note")
			} else {
				entry.Embedding = NewEmbedding(vec)
			}
		}

		idx.Put(entry)
		idx.LastFullScanAt = s.now().UTC()

		if err := s.repo.Save(ctx, idx); err != nil {
			return fmt.Errorf("failed to save index: %w", err)
		}
		observability.SetIndexEntries(len(idx.Entries))
		return nil
	})

	observability.RecordUpsert(err == nil)
	observability.RecordIndexAudit(ctx, "upsert", err == nil, map[string]interface{}{"path": notePath})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn().Err(err).Msg("Upsert failed")
		return Entry{}, err
	}

	logger.Info().
		Strs("tags", entry.Tags).
		Bool("embedded", entry.Embedding.Present()).
		Msg("Updated index entry")

	return entry, nil
}

// RelatedOptions configures Related.
type RelatedOptions struct {
	MaxResults int // 0 keeps every match
}

// Related finds entries related to the note at notePath, excluding the note itself.
func (s *Store) Related(ctx context.Context, notePath string, opts RelatedOptions) ([]RelatedMatch, error) {
	note, err := s.source.ReadNote(ctx, notePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read note %s: %w", notePath, err)
	}

	return s.RelatedTo(ctx, Reference{
		Tags:        note.Tags,
		Keywords:    ExtractKeywords(note.Description),
		ExcludePath: notePath,
		MaxResults:  opts.MaxResults,
	})
}

// RelatedTo matches the persisted entries against ref.
func (s *Store) RelatedTo(ctx context.Context, ref Reference) ([]RelatedMatch, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "memory.related")
	defer span.End()

	idx, err := s.repo.Load(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrNoIndex, err)
	}

	return MatchRelated(ref, idx.Sorted()), nil
}

// Prune removes entries whose notes no longer exist and returns their paths.
// Rebuild and Upsert never prune on their own.
func (s *Store) Prune(ctx context.Context, exists func(path string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	err := s.withLock(ctx, func() error {
		idx, err := s.repo.Load(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoIndex, err)
		}

		for _, path := range sortedKeys(idx.Entries) {
			if !exists(path) {
				idx.Delete(path)
				removed = append(removed, path)
			}
		}
		if len(removed) == 0 {
			return nil
		}

		idx.LastFullScanAt = s.now().UTC()
		if err := s.repo.Save(ctx, idx); err != nil {
			return fmt.Errorf("failed to save index: %w", err)
		}
		observability.SetIndexEntries(len(idx.Entries))
		return nil
	})
	observability.RecordIndexAudit(ctx, "prune", err == nil, map[string]interface{}{"removed": len(removed)})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("pruned", len(removed)).Msg("Pruned stale entries")
	return removed, nil
}

func (s *Store) loadOrFresh(ctx context.Context, logger zerolog.Logger) *Index {
	idx, err := s.repo.Load(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Index not found or invalid, creating a new index")
		return NewIndex(s.now())
	}
	return idx
}

func (s *Store) withLock(ctx context.Context, fn func() error) error {
	locker, ok := s.repo.(Locker)
	if !ok {
		return fn()
	}

	unlock, err := locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to release index lock")
		}
	}()

	return fn()
}

func (s *Store) embed(ctx context.Context, embedder EmbeddingProvider, text string) ([]float32, error) {
	vec, err := embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := s.validateVector(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (s *Store) validateVector(vec []float32) error {
	if len(vec) == 0 {
		return errors.New("embedding is empty")
	}
	if s.dimension > 0 && len(vec) != s.dimension {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), s.dimension)
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding value %d is not finite", i)
		}
	}
	return nil
}

func buildEntry(path string, note Note) Entry {
	tags := make([]string, len(note.Tags))
	copy(tags, note.Tags)

	return Entry{
		Path:                path,
		Tags:                tags,
		DescriptionKeywords: ExtractKeywords(note.Description),
		Description:         note.Description,
		ModifiedAt:          note.ModifiedAt.Unix(),
		GroupName:           filepath.Base(filepath.Dir(path)),
		FileName:            filepath.Base(path),
	}
}

func sortedKeys(entries map[string]Entry) []string {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
