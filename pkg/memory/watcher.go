package memory

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a path must stay quiet before onChange fires.
const DefaultDebounce = 500 * time.Millisecond

// NoteWatcher watches a notes tree for markdown changes
type NoteWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func(path string)
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	stopCh chan struct{}
	once   sync.Once
}

// NewNoteWatcher creates a watcher that calls onChange once per changed note
// after debounce has elapsed without further events for that note.
func NewNoteWatcher(logger zerolog.Logger, debounce time.Duration, onChange func(path string)) (*NoteWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	nw := &NoteWatcher{
		watcher:  watcher,
		logger:   logger.With().Str("component", "note-watcher").Logger(),
		onChange: onChange,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
		stopCh:   make(chan struct{}),
	}

	go nw.run()

	return nw, nil
}

// Watch adds root and every directory below it
func (nw *NoteWatcher) Watch(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			nw.logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable directory")
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if err := nw.watcher.Add(path); err != nil {
			return err
		}
		nw.logger.Debug().Str("dir", path).Msg("Watching directory")
		return nil
	})
}

// Stop stops the watcher and cancels pending callbacks
func (nw *NoteWatcher) Stop() error {
	var err error
	nw.once.Do(func() {
		close(nw.stopCh)

		nw.mu.Lock()
		for path, t := range nw.timers {
			t.Stop()
			delete(nw.timers, path)
		}
		nw.mu.Unlock()

		err = nw.watcher.Close()
	})
	return err
}

func (nw *NoteWatcher) run() {
	for {
		select {
		case event, ok := <-nw.watcher.Events:
			if !ok {
				return
			}
			nw.handle(event)

		case err, ok := <-nw.watcher.Errors:
			if !ok {
				return
			}
			nw.logger.Error().Err(err).Msg("File watcher error")

		case <-nw.stopCh:
			return
		}
	}
}

func (nw *NoteWatcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := nw.Watch(event.Name); err != nil {
				nw.logger.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".md") {
		return
	}

	switch {
	case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
		nw.logger.Debug().
			Str("file", filepath.Base(event.Name)).
			Str("op", event.Op.String()).
			Msg("Note change detected")
		nw.schedule(event.Name)

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		// Stale entries are left for prune.
		nw.logger.Info().
			Str("file", filepath.Base(event.Name)).
			Str("op", event.Op.String()).
			Msg("Note removed, run prune to drop its entry")
	}
}

// schedule debounces onChange per path
func (nw *NoteWatcher) schedule(path string) {
	nw.mu.Lock()
	defer nw.mu.Unlock()

	select {
	case <-nw.stopCh:
		return
	default:
	}

	if t, ok := nw.timers[path]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(nw.debounce, func() { nw.fire(path, t) })
	nw.timers[path] = t
}

// fire delivers a debounced change unless t was superseded by a later event
func (nw *NoteWatcher) fire(path string, t *time.Timer) {
	nw.mu.Lock()
	if nw.timers[path] != t {
		nw.mu.Unlock()
		return
	}
	delete(nw.timers, path)
	nw.mu.Unlock()

	nw.onChange(path)
}
