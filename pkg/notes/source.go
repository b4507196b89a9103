package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harun/memindex/pkg/memory"
	"github.com/rs/zerolog"
)

// DefaultExtension is the file extension of notes.
const DefaultExtension = ".md"

// Source reads notes from a directory tree. It implements memory.NoteSource.
type Source struct {
	Root      string
	Extension string
	Logger    zerolog.Logger
}

// NewSource creates a Source rooted at root.
func NewSource(root string, logger zerolog.Logger) *Source {
	return &Source{
		Root:      root,
		Extension: DefaultExtension,
		Logger:    logger.With().Str("component", "note-source").Logger(),
	}
}

func (s *Source) extension() string {
	if s.Extension == "" {
		return DefaultExtension
	}
	return s.Extension
}

// ListNotes returns the absolute paths of every note below Root, sorted.
// Unreadable subdirectories are logged and skipped.
func (s *Source) ListNotes(ctx context.Context) ([]string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notes directory: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("notes path is not a directory: %s", root)
	}

	ext := s.extension()
	var paths []string

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			s.Logger.Warn().Err(err).Str("path", path).Msg("Skipping unreadable directory")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) == ext {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk notes directory: %w", err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ReadNote reads a note and parses its frontmatter.
func (s *Source) ReadNote(ctx context.Context, path string) (memory.Note, error) {
	if err := ctx.Err(); err != nil {
		return memory.Note{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return memory.Note{}, fmt.Errorf("failed to stat note: %w", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return memory.Note{}, fmt.Errorf("failed to read note: %w", err)
	}

	fm, err := ParseFrontmatter(content)
	if err != nil {
		return memory.Note{}, err
	}

	return memory.Note{
		Path:        path,
		Tags:        fm.Tags,
		Description: fm.Description,
		ModifiedAt:  info.ModTime(),
	}, nil
}

// ResolvePath turns path into an absolute note path. Relative paths are
// resolved against the working directory first and then against root. The
// file must exist and carry the note extension.
func (s *Source) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	candidates := []string{path}
	if !filepath.IsAbs(path) && s.Root != "" {
		candidates = append(candidates, filepath.Join(s.Root, path))
	}

	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		exists, err := FileExists(abs)
		if err != nil {
			return "", err
		}
		if !exists {
			continue
		}
		if filepath.Ext(abs) != s.extension() {
			return "", fmt.Errorf("file must be a %s file: %s", s.extension(), abs)
		}
		return abs, nil
	}

	return "", fmt.Errorf("file not found: %s", path)
}

// Within reports whether path lies inside Root.
func (s *Source) Within(path string) (bool, error) {
	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute base path: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false, nil
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)), nil
}

// EnsureDirectory creates dir if it doesn't exist
func EnsureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path exists but is not a directory: %s", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// FileExists checks if a file exists at the given path
func FileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
