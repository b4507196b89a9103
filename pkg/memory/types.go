package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// SchemaVersion is the only persisted index version this package understands.
	SchemaVersion = 1

	// EmbeddingDimension is the vector length produced by the default models.
	EmbeddingDimension = 384
)

var (
	// ErrNoMetadata is returned when a note has no valid frontmatter header.
	ErrNoMetadata = errors.New("no valid frontmatter")

	// ErrNoIndex is returned by search when the index cannot be loaded at all.
	ErrNoIndex = errors.New("memory index not available")

	// ErrEmptyQuery is returned when a search query is blank.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrIndexNotFound is returned by repositories when nothing has been persisted yet.
	ErrIndexNotFound = errors.New("index not found")

	// ErrVersionMismatch is returned when the persisted schema version is not SchemaVersion.
	ErrVersionMismatch = errors.New("index version mismatch")

	// ErrCorruptIndex is returned when the persisted index cannot be decoded or validated.
	ErrCorruptIndex = errors.New("index is corrupt")
)

// Embedding is an optional vector. The zero value means the entry has no embedding.
type Embedding struct {
	values []float32
}

// NewEmbedding wraps a vector. An empty vector yields an absent embedding.
func NewEmbedding(values []float32) Embedding {
	if len(values) == 0 {
		return Embedding{}
	}
	v := make([]float32, len(values))
	copy(v, values)
	return Embedding{values: v}
}

// Get returns the vector and whether one is present.
func (e Embedding) Get() ([]float32, bool) {
	return e.values, len(e.values) > 0
}

// Present reports whether the embedding carries a vector.
func (e Embedding) Present() bool {
	return len(e.values) > 0
}

// Len returns the vector length, 0 when absent.
func (e Embedding) Len() int {
	return len(e.values)
}

// IsZero lets encoding/json omit absent embeddings via omitzero.
func (e Embedding) IsZero() bool {
	return len(e.values) == 0
}

func (e Embedding) MarshalJSON() ([]byte, error) {
	if len(e.values) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(e.values)
}

func (e *Embedding) UnmarshalJSON(data []byte) error {
	var values []float32
	if err := json.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("invalid embedding: %w", err)
	}
	*e = NewEmbedding(values)
	return nil
}

// Entry is the indexed metadata of one note.
type Entry struct {
	Path                string    `json:"-"`
	Tags                []string  `json:"tags"`
	DescriptionKeywords []string  `json:"descriptionKeywords"`
	Description         string    `json:"description"`
	ModifiedAt          int64     `json:"mtime"`
	GroupName           string    `json:"basename"`
	FileName            string    `json:"filename"`
	Embedding           Embedding `json:"embedding,omitzero"`
}

// Stats summarises the index.
type Stats struct {
	TotalFiles         int   `json:"totalFiles"`
	LastScanDurationMs int64 `json:"lastScanDurationMs"`
}

// Index is the whole persisted store, keyed by absolute note path.
type Index struct {
	Version        int              `json:"version"`
	LastFullScanAt time.Time        `json:"lastFullScanAt"`
	Entries        map[string]Entry `json:"entries"`
	Stats          Stats            `json:"stats"`
}

// NewIndex returns an empty index stamped with the current schema version.
func NewIndex(now time.Time) *Index {
	return &Index{
		Version:        SchemaVersion,
		LastFullScanAt: now.UTC(),
		Entries:        make(map[string]Entry),
	}
}

// Put stores entry under its path, replacing any previous entry.
func (idx *Index) Put(entry Entry) {
	if idx.Entries == nil {
		idx.Entries = make(map[string]Entry)
	}
	idx.Entries[entry.Path] = entry
	idx.recount()
}

// Delete removes the entry for path and reports whether it existed.
func (idx *Index) Delete(path string) bool {
	if _, ok := idx.Entries[path]; !ok {
		return false
	}
	delete(idx.Entries, path)
	idx.recount()
	return true
}

// Sorted returns the entries ordered by path.
func (idx *Index) Sorted() []Entry {
	paths := sortedKeys(idx.Entries)
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, idx.Entries[p])
	}
	return entries
}

// EmbeddedCount returns how many entries carry an embedding.
func (idx *Index) EmbeddedCount() int {
	n := 0
	for _, e := range idx.Entries {
		if e.Embedding.Present() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the index.
func (idx *Index) Clone() *Index {
	out := &Index{
		Version:        idx.Version,
		LastFullScanAt: idx.LastFullScanAt,
		Entries:        make(map[string]Entry, len(idx.Entries)),
		Stats:          idx.Stats,
	}
	for p, e := range idx.Entries {
		e.Tags = append([]string{}, e.Tags...)
		e.DescriptionKeywords = append([]string{}, e.DescriptionKeywords...)
		if v, ok := e.Embedding.Get(); ok {
			e.Embedding = NewEmbedding(v)
		}
		out.Entries[p] = e
	}
	return out
}

// normalize restores invariants after decoding: paths from keys, non-nil slices
// and an accurate file count.
func (idx *Index) normalize() {
	if idx.Entries == nil {
		idx.Entries = make(map[string]Entry)
	}
	for p, e := range idx.Entries {
		e.Path = p
		if e.Tags == nil {
			e.Tags = []string{}
		}
		if e.DescriptionKeywords == nil {
			e.DescriptionKeywords = []string{}
		}
		idx.Entries[p] = e
	}
	idx.recount()
}

func (idx *Index) recount() {
	idx.Stats.TotalFiles = len(idx.Entries)
}

// Note is what the metadata collaborator extracts from one file.
type Note struct {
	Path        string
	Tags        []string
	Description string
	ModifiedAt  time.Time
}

// NoteSource enumerates notes and extracts their frontmatter metadata.
// ReadNote returns ErrNoMetadata (possibly wrapped) for notes without a valid header.
type NoteSource interface {
	ListNotes(ctx context.Context) ([]string, error)
	ReadNote(ctx context.Context, path string) (Note, error)
}

// EmbeddingProvider generates vector embeddings from text
type EmbeddingProvider interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
