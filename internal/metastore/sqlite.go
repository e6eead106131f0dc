package metastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/book-expert/tts-cache/internal/core"
	_ "github.com/mattn/go-sqlite3" // database/sql driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tts_artifacts (
	content_id       TEXT PRIMARY KEY,
	fingerprint      TEXT NOT NULL DEFAULT '',
	artifact_key     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL,
	url              TEXT NOT NULL DEFAULT '',
	duration_seconds REAL NOT NULL DEFAULT 0,
	file_size_bytes  INTEGER NOT NULL DEFAULT 0,
	chunk_count      INTEGER NOT NULL DEFAULT 0,
	generated_at     INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tts_artifacts_status ON tts_artifacts(status);
`

const sqliteUpsert = `
INSERT INTO tts_artifacts (
	content_id, fingerprint, artifact_key, status, url, duration_seconds,
	file_size_bytes, chunk_count, generated_at, updated_at, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(content_id) DO UPDATE SET
	fingerprint = excluded.fingerprint,
	artifact_key = excluded.artifact_key,
	status = excluded.status,
	url = excluded.url,
	duration_seconds = excluded.duration_seconds,
	file_size_bytes = excluded.file_size_bytes,
	chunk_count = excluded.chunk_count,
	generated_at = excluded.generated_at,
	updated_at = excluded.updated_at,
	error = excluded.error
`

const sqliteSelect = `
SELECT content_id, fingerprint, artifact_key, status, url, duration_seconds,
	file_size_bytes, chunk_count, generated_at, updated_at, error
FROM tts_artifacts WHERE content_id = ?
`

// SQLiteStore keeps artifact records in a single SQLite table.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dirErr := os.MkdirAll(filepath.Dir(path), dirPermissions)
	if dirErr != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", dirErr)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database '%s': %w", path, err)
	}

	_, err = db.Exec(sqliteSchema)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the record for contentID or core.ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, contentID string) (*core.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		record      core.Artifact
		status      string
		generatedAt int64
		updatedAt   int64
	)

	err := s.db.QueryRowContext(ctx, sqliteSelect, contentID).Scan(
		&record.ContentID, &record.Fingerprint, &record.Key, &status, &record.URL,
		&record.DurationSeconds, &record.FileSizeBytes, &record.ChunkCount,
		&generatedAt, &updatedAt, &record.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record '%s': %w", contentID, core.ErrNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query record '%s': %w", contentID, err)
	}

	record.Status = core.Status(status)
	record.GeneratedAt = fromUnixNano(generatedAt)
	record.UpdatedAt = fromUnixNano(updatedAt)

	return &record, nil
}

// Put inserts or replaces the record stored under record.ContentID.
func (s *SQLiteStore) Put(ctx context.Context, record *core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, sqliteUpsert,
		record.ContentID, record.Fingerprint, record.Key, string(record.Status), record.URL,
		record.DurationSeconds, record.FileSizeBytes, record.ChunkCount,
		toUnixNano(record.GeneratedAt), toUnixNano(record.UpdatedAt), record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record '%s': %w", record.ContentID, err)
	}

	return nil
}

// Delete removes the record for contentID.
func (s *SQLiteStore) Delete(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM tts_artifacts WHERE content_id = ?", contentID)
	if err != nil {
		return fmt.Errorf("failed to delete record '%s': %w", contentID, err)
	}

	return nil
}

// CountByStatus returns the number of records in each status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[core.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM tts_artifacts GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[core.Status]int)

	for rows.Next() {
		var (
			status string
			count  int
		)

		scanErr := rows.Scan(&status, &count)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", scanErr)
		}

		counts[core.Status(status)] = count
	}

	rowsErr := rows.Err()
	if rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate status counts: %w", rowsErr)
	}

	return counts, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixNano()
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns).UTC()
}
