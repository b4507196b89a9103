package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func init() {
	// Auto-register sqlite-vec extension
	sqlite_vec.Auto()
}

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS entries (
		path TEXT PRIMARY KEY,
		tags TEXT NOT NULL,
		description_keywords TEXT NOT NULL,
		description TEXT NOT NULL,
		mtime INTEGER NOT NULL,
		basename TEXT NOT NULL,
		filename TEXT NOT NULL,
		embedding BLOB
	);
`

// SQLiteRepository persists the index in a SQLite database. Embeddings are
// stored as sqlite-vec float32 blobs.
type SQLiteRepository struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewSQLiteRepository opens (and if needed creates) the database at path.
func NewSQLiteRepository(path string, logger zerolog.Logger) (*SQLiteRepository, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	r := &SQLiteRepository{
		db:     db,
		path:   path,
		logger: logger.With().Str("component", "index-sqlite").Logger(),
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec extension not available: %w", err)
	}
	r.logger.Debug().Str("vec_version", vecVersion).Str("path", path).Msg("SQLite index opened")

	return r, nil
}

// Path returns the database location.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Load reads the index from the database.
func (r *SQLiteRepository) Load(ctx context.Context) (*Index, error) {
	meta, err := r.readMetadata(ctx)
	if err != nil {
		return nil, err
	}

	versionStr, ok := meta["version"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, r.path)
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil || version != SchemaVersion {
		return nil, fmt.Errorf("%w: found %q, want %d", ErrVersionMismatch, versionStr, SchemaVersion)
	}

	idx := NewIndex(time.Time{})
	if ts, ok := meta["last_full_scan_at"]; ok {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: last_full_scan_at: %v", ErrCorruptIndex, err)
		}
		idx.LastFullScanAt = parsed
	}
	if d, ok := meta["last_scan_duration_ms"]; ok {
		idx.Stats.LastScanDurationMs, _ = strconv.ParseInt(d, 10, 64)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT path, tags, description_keywords, description, mtime, basename, filename,
			embedding,
			CASE WHEN embedding IS NULL THEN 0 ELSE vec_length(embedding) END
		FROM entries
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e                Entry
			tagsJSON, kwJSON string
			blob             []byte
			dims             int
		)
		if err := rows.Scan(&e.Path, &tagsJSON, &kwJSON, &e.Description, &e.ModifiedAt,
			&e.GroupName, &e.FileName, &blob, &dims); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return nil, fmt.Errorf("%w: tags for %s: %v", ErrCorruptIndex, e.Path, err)
		}
		if err := json.Unmarshal([]byte(kwJSON), &e.DescriptionKeywords); err != nil {
			return nil, fmt.Errorf("%w: keywords for %s: %v", ErrCorruptIndex, e.Path, err)
		}
		if len(blob) > 0 {
			vec, err := decodeFloat32(blob)
			if err != nil || len(vec) != dims {
				return nil, fmt.Errorf("%w: embedding for %s", ErrCorruptIndex, e.Path)
			}
			e.Embedding = NewEmbedding(vec)
		}
		idx.Entries[e.Path] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}

	idx.normalize()
	return idx, nil
}

func (r *SQLiteRepository) readMetadata(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta[k] = v
	}
	return meta, rows.Err()
}

// Save replaces the stored index in a single transaction.
func (r *SQLiteRepository) Save(ctx context.Context, idx *Index) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (path, tags, description_keywords, description, mtime, basename, filename, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range idx.Sorted() {
		tagsJSON, err := json.Marshal(nonNil(e.Tags))
		if err != nil {
			return fmt.Errorf("failed to marshal tags: %w", err)
		}
		kwJSON, err := json.Marshal(nonNil(e.DescriptionKeywords))
		if err != nil {
			return fmt.Errorf("failed to marshal keywords: %w", err)
		}

		var blob []byte
		if vec, ok := e.Embedding.Get(); ok {
			blob, err = sqlite_vec.SerializeFloat32(vec)
			if err != nil {
				return fmt.Errorf("failed to serialize embedding for %s: %w", e.Path, err)
			}
		}

		if _, err := stmt.ExecContext(ctx, e.Path, string(tagsJSON), string(kwJSON), e.Description,
			e.ModifiedAt, e.GroupName, e.FileName, blob); err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.Path, err)
		}
	}

	meta := map[string]string{
		"version":               strconv.Itoa(idx.Version),
		"last_full_scan_at":     idx.LastFullScanAt.UTC().Format(time.RFC3339Nano),
		"last_scan_duration_ms": strconv.FormatInt(idx.Stats.LastScanDurationMs, 10),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("failed to write metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}

	r.logger.Debug().Int("entries", len(idx.Entries)).Msg("Index saved")
	return nil
}

// Lock takes the advisory lock guarding the database.
func (r *SQLiteRepository) Lock(ctx context.Context) (func() error, error) {
	return lockFile(ctx, r.path)
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func decodeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
