// Package store persists extracted media lists and extraction history in SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xmedia/internal/types"
)

// Store handles all database operations
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS media_cache (
		post_id TEXT PRIMARY KEY,
		items TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS extraction_history (
		extraction_id TEXT PRIMARY KEY,
		post_id TEXT,
		source_kind TEXT NOT NULL,
		succeeded BOOLEAN NOT NULL,
		item_count INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_media_cache_created_at ON media_cache(created_at);
	CREATE INDEX IF NOT EXISTS idx_history_created_at ON extraction_history(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get returns the cached items of a post
func (s *Store) Get(postID string) ([]types.MediaReference, bool, error) {
	entry, err := s.Entry(postID)
	if err != nil || entry == nil {
		return nil, false, err
	}
	return entry.Items, true, nil
}

// Entry returns the full cache row of a post, or nil when there is none
func (s *Store) Entry(postID string) (*CacheEntry, error) {
	var (
		itemsJSON string
		source    string
		created   int64
	)
	err := s.db.QueryRow(`
		SELECT items, source_kind, created_at FROM media_cache WHERE post_id = ?
	`, postID).Scan(&itemsJSON, &source, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	e := &CacheEntry{
		PostID:     postID,
		SourceKind: types.SourceKind(source),
		CreatedAt:  time.UnixMilli(created),
	}
	if err := json.Unmarshal([]byte(itemsJSON), &e.Items); err != nil {
		return nil, fmt.Errorf("failed to decode cached items: %w", err)
	}
	return e, nil
}

// Set inserts or replaces the cached items of a post
func (s *Store) Set(postID string, items []types.MediaReference, source types.SourceKind) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO media_cache (post_id, items, source_kind, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			items = excluded.items,
			source_kind = excluded.source_kind,
			created_at = excluded.created_at
	`, postID, string(itemsJSON), string(source), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Prune deletes cache entries and history older than olderThan and returns
// the number of cache entries removed
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan).UnixMilli()

	res, err := s.db.Exec(`DELETE FROM media_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM extraction_history WHERE created_at < ?`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of cached posts
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM media_cache`).Scan(&n)
	return n, err
}

// RecordExtraction appends an outcome summary to the history
func (s *Store) RecordExtraction(out types.ExtractionOutcome) error {
	_, err := s.db.Exec(`
		INSERT INTO extraction_history (extraction_id, post_id, source_kind, succeeded,
			item_count, elapsed_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, out.ExtractionID, out.PostID, string(out.SourceKind), out.Succeeded,
		len(out.Items), out.ElapsedMs, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}
	return nil
}

// History returns the most recent extractions, newest first
func (s *Store) History(limit int) ([]HistoryEntry, error) {
	rows, err := s.db.Query(`
		SELECT extraction_id, post_id, source_kind, succeeded, item_count, elapsed_ms, created_at
		FROM extraction_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			h       HistoryEntry
			source  string
			created int64
		)
		if err := rows.Scan(&h.ExtractionID, &h.PostID, &source, &h.Succeeded,
			&h.ItemCount, &h.ElapsedMs, &created); err != nil {
			return nil, err
		}
		h.SourceKind = types.SourceKind(source)
		h.CreatedAt = time.UnixMilli(created)
		entries = append(entries, h)
	}
	return entries, rows.Err()
}
