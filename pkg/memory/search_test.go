package memory

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchIndex() *Index {
	idx := NewIndex(testClock())
	idx.Put(Entry{
		Path:        "/brain/ops/deploy.md",
		Tags:        []string{"ops", "deploy"},
		Description: "Blue green deployment runbook",
		GroupName:   "ops",
		FileName:    "deploy.md",
		Embedding:   NewEmbedding([]float32{0.8, 0.6}),
	})
	idx.Put(Entry{
		Path:        "/brain/cooking/bread.md",
		Tags:        []string{"cooking"},
		Description: "Sourdough starter schedule",
		GroupName:   "cooking",
		FileName:    "bread.md",
		Embedding:   NewEmbedding([]float32{0.1, 0.99498744}),
	})
	idx.Put(Entry{
		Path:        "/brain/ops/unembedded.md",
		Tags:        []string{"ops"},
		Description: "No vector yet",
		GroupName:   "ops",
		FileName:    "unembedded.md",
	})
	idx.Put(Entry{
		Path:      "/brain/ops/other-model.md",
		Tags:      []string{"ops"},
		GroupName: "ops",
		FileName:  "other-model.md",
		Embedding: NewEmbedding([]float32{1, 0, 0}),
	})
	return idx
}

func createTestSearchEngine(seed *Index) *SearchEngine {
	embedder := staticEmbedder{
		"how do we deploy":   {1, 0},
		"anything at all":    {0.6, 0.8},
		"zero vector please": {0, 0},
	}
	return NewSearchEngine(NewMemoryRepository(seed), embedder, zerolog.Nop())
}

func TestSearch(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	results, err := engine.Search(context.Background(), "how do we deploy", DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.InDelta(t, 0.8, r.Score, 1e-6)
	assert.Equal(t, "/brain/ops/deploy.md", r.Path)
	assert.Equal(t, "ops", r.GroupName)
	assert.Equal(t, "deploy.md", r.FileName)
	assert.Equal(t, "Blue green deployment runbook", r.Description)
	assert.Equal(t, []string{"ops", "deploy"}, r.Tags)
}

func TestSearch_ThresholdAndOrder(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	results, err := engine.Search(context.Background(), "how do we deploy", SearchOptions{Threshold: -1, MaxResults: 10})
	require.NoError(t, err)

	// unembedded and mismatched-length entries never appear
	require.Len(t, results, 2)
	assert.Equal(t, "/brain/ops/deploy.md", results[0].Path)
	assert.Equal(t, "/brain/cooking/bread.md", results[1].Path)
	assert.InDelta(t, 0.1, results[1].Score, 1e-6)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearch_MaxResults(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	results, err := engine.Search(context.Background(), "anything at all", SearchOptions{Threshold: -1, MaxResults: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// bread scores ~0.856, deploy 0.96
	assert.Equal(t, "/brain/ops/deploy.md", results[0].Path)
}

func TestSearch_TiesOrderedByPath(t *testing.T) {
	idx := NewIndex(testClock())
	for _, p := range []string{"/brain/c.md", "/brain/a.md", "/brain/b.md"} {
		idx.Put(Entry{Path: p, Embedding: NewEmbedding([]float32{1, 0})})
	}
	engine := createTestSearchEngine(idx)

	results, err := engine.Search(context.Background(), "how do we deploy", DefaultSearchOptions())
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "/brain/a.md", results[0].Path)
	assert.Equal(t, "/brain/b.md", results[1].Path)
	assert.Equal(t, "/brain/c.md", results[2].Path)
}

func TestSearch_NoMatches(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	results, err := engine.Search(context.Background(), "zero vector please", DefaultSearchOptions())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearch_ZeroOptions(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	// zero threshold, default result limit
	results, err := engine.Search(context.Background(), "how do we deploy", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "/brain/cooking/bread.md", results[1].Path)
}

func TestSearch_NonFiniteQueryVector(t *testing.T) {
	idx := NewIndex(testClock())
	idx.Put(Entry{Path: "/brain/a.md", Embedding: NewEmbedding([]float32{1, 0})})
	idx.Put(Entry{Path: "/brain/b.md", Embedding: NewEmbedding([]float32{0, 1})})

	embedder := staticEmbedder{"broken": {float32(math.NaN()), 1}}
	engine := NewSearchEngine(NewMemoryRepository(idx), embedder, zerolog.Nop())

	for _, opts := range []SearchOptions{DefaultSearchOptions(), {Threshold: -1, MaxResults: 10}} {
		results, err := engine.Search(context.Background(), "broken", opts)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	results, err := engine.Search(context.Background(), "   ", DefaultSearchOptions())
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Empty(t, results)
}

func TestSearch_NoIndex(t *testing.T) {
	engine := createTestSearchEngine(nil)

	results, err := engine.Search(context.Background(), "how do we deploy", DefaultSearchOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoIndex)
	assert.ErrorIs(t, err, ErrIndexNotFound)
	assert.Empty(t, results)
}

func TestSearch_EmbedFailure(t *testing.T) {
	engine := createTestSearchEngine(searchIndex())

	_, err := engine.Search(context.Background(), "unknown query", DefaultSearchOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed query")
	assert.NotErrorIs(t, err, ErrNoIndex)
}

func TestSearch_NoEmbedder(t *testing.T) {
	engine := NewSearchEngine(NewMemoryRepository(searchIndex()), nil, zerolog.Nop())

	_, err := engine.Search(context.Background(), "how do we deploy", DefaultSearchOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding provider")
}
