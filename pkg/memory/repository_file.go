package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
)

// FileRepository persists the index as a single JSON document.
type FileRepository struct {
	path         string
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewFileRepository creates a JSON repository at path.
func NewFileRepository(path string, logger zerolog.Logger) *FileRepository {
	return &FileRepository{
		path:         path,
		logger:       logger.With().Str("component", "index-file").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(IndexSchema),
	}
}

// Path returns the location of the index file.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads and validates the index file.
func (r *FileRepository) Load(ctx context.Context) (*Index, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, r.path)
		}
		return nil, fmt.Errorf("failed to read index file: %w", err)
	}

	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	if probe.Version == nil || *probe.Version != SchemaVersion {
		found := "missing"
		if probe.Version != nil {
			found = fmt.Sprintf("%d", *probe.Version)
		}
		return nil, fmt.Errorf("%w: found %s, want %d", ErrVersionMismatch, found, SchemaVersion)
	}

	if err := r.validateSchema(data); err != nil {
		return nil, err
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	idx.normalize()

	r.logger.Debug().
		Str("path", r.path).
		Int("entries", len(idx.Entries)).
		Msg("Index loaded")

	return &idx, nil
}

func (r *FileRepository) validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(r.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %v", ErrCorruptIndex, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrCorruptIndex, strings.Join(msgs, "; "))
}

// Save writes the index to a temp file and renames it into place.
func (r *FileRepository) Save(ctx context.Context, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("failed to name temporary file: %w", err)
	}
	tempPath := fmt.Sprintf("%s.%s.tmp", r.path, id)

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempPath, r.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	r.logger.Debug().
		Str("path", r.path).
		Int("entries", len(idx.Entries)).
		Msg("Index saved")

	return nil
}

// Lock takes the advisory lock guarding the index file.
func (r *FileRepository) Lock(ctx context.Context) (func() error, error) {
	return lockFile(ctx, r.path)
}
