package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

var testClock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

// fakeSource serves notes from memory. A nil note means no frontmatter.
type fakeSource struct {
	mu    sync.Mutex
	notes map[string]*Note
}

func newFakeSource() *fakeSource {
	return &fakeSource{notes: make(map[string]*Note)}
}

func (f *fakeSource) add(path, description string, tags ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[path] = &Note{
		Path:        path,
		Tags:        tags,
		Description: description,
		ModifiedAt:  time.Unix(1700000000, 0),
	}
}

func (f *fakeSource) addInvalid(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[path] = nil
}

func (f *fakeSource) remove(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notes, path)
}

func (f *fakeSource) ListNotes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	paths := make([]string, 0, len(f.notes))
	for p := range f.notes {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func (f *fakeSource) ReadNote(ctx context.Context, path string) (Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	note, ok := f.notes[path]
	if !ok {
		return Note{}, fmt.Errorf("open %s: no such file", path)
	}
	if note == nil {
		return Note{}, fmt.Errorf("%s: %w", path, ErrNoMetadata)
	}
	return *note, nil
}

// mockEmbedder is a testify mock of EmbeddingProvider.
type mockEmbedder struct {
	mock.Mock
	dim int
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

func (m *mockEmbedder) Dimension() int {
	return m.dim
}

// staticEmbedder maps texts to fixed vectors.
type staticEmbedder map[string][]float32

func (s staticEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vec, ok := s[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return vec, nil
}

func (s staticEmbedder) Dimension() int {
	for _, v := range s {
		return len(v)
	}
	return 0
}
