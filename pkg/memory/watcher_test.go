package memory

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mu    sync.Mutex
	paths []string
}

func (c *changeRecorder) record(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *changeRecorder) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

func TestNoteWatcher_DebouncesWrites(t *testing.T) {
	root := t.TempDir()
	rec := &changeRecorder{}

	nw, err := NewNoteWatcher(zerolog.Nop(), 100*time.Millisecond, rec.record)
	require.NoError(t, err)
	defer nw.Stop()
	require.NoError(t, nw.Watch(root))

	note := filepath.Join(root, "a.md")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(note, []byte("---\ntags: [go]\n---\n"), 0644))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored.txt"), []byte("x"), 0644))

	assert.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, []string{note}, rec.snapshot())
}

func TestNoteWatcher_NewSubdirectory(t *testing.T) {
	root := t.TempDir()
	rec := &changeRecorder{}

	nw, err := NewNoteWatcher(zerolog.Nop(), 50*time.Millisecond, rec.record)
	require.NoError(t, err)
	defer nw.Stop()
	require.NoError(t, nw.Watch(root))

	sub := filepath.Join(root, "projects")
	require.NoError(t, os.Mkdir(sub, 0755))
	// give the watcher time to register the new directory
	time.Sleep(100 * time.Millisecond)

	note := filepath.Join(sub, "b.md")
	require.NoError(t, os.WriteFile(note, []byte("---\ndescription: b\n---\n"), 0644))

	assert.Eventually(t, func() bool {
		for _, p := range rec.snapshot() {
			if p == note {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNoteWatcher_StopIsIdempotent(t *testing.T) {
	nw, err := NewNoteWatcher(zerolog.Nop(), 0, func(string) {})
	require.NoError(t, err)
	require.NoError(t, nw.Stop())
	assert.NoError(t, nw.Stop())
}

func TestNoteWatcher_MissingRoot(t *testing.T) {
	nw, err := NewNoteWatcher(zerolog.Nop(), 0, func(string) {})
	require.NoError(t, err)
	defer nw.Stop()

	assert.Error(t, nw.Watch(filepath.Join(t.TempDir(), "missing")))
}

func TestNoteWatcher_SupersededTimerDoesNotFire(t *testing.T) {
	rec := &changeRecorder{}

	nw, err := NewNoteWatcher(zerolog.Nop(), time.Hour, rec.record)
	require.NoError(t, err)
	defer nw.Stop()

	path := "/brain/go/a.md"
	nw.schedule(path)
	nw.mu.Lock()
	stale := nw.timers[path]
	nw.mu.Unlock()

	nw.schedule(path)
	nw.mu.Lock()
	current := nw.timers[path]
	nw.mu.Unlock()
	require.NotSame(t, stale, current)

	// a stale callback that lost the race for the lock
	nw.fire(path, stale)
	assert.Empty(t, rec.snapshot())

	nw.mu.Lock()
	assert.Same(t, current, nw.timers[path])
	nw.mu.Unlock()

	nw.fire(path, current)
	assert.Equal(t, []string{path}, rec.snapshot())

	nw.mu.Lock()
	assert.NotContains(t, nw.timers, path)
	nw.mu.Unlock()
}
