// Package cache provides a persistent read-through cache for market data API responses.
// Entries are stored as JSON blobs with expiration timestamps for cache-first behavior.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_cache (
	kind TEXT NOT NULL,
	key TEXT NOT NULL,
	data TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (kind, key)
);
CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at);
`

// Store provides cache operations for API responses.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite cache database at path.
// Use ":memory:" for a process-local cache.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	return New(db)
}

// New wraps an existing database handle and ensures the schema exists.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store saves data with expiration = now + ttl.
func (s *Store) Store(kind, key string, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	expiresAt := s.now().Add(ttl).Unix()

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO api_cache (kind, key, data, expires_at) VALUES (?, ?, ?, ?)",
		kind, key, string(jsonData), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", kind, key, err)
	}
	return nil
}

// GetIfFresh returns data only if it has not expired.
// Returns nil, nil if the key doesn't exist or data is expired.
func (s *Store) GetIfFresh(kind, key string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM api_cache WHERE kind = ? AND key = ? AND expires_at > ?",
		kind, key, s.now().Unix(),
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, key, err)
	}
	return json.RawMessage(data), nil
}

// Get returns data regardless of expiration status.
// Returns nil, nil if the key doesn't exist.
func (s *Store) Get(kind, key string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM api_cache WHERE kind = ? AND key = ?",
		kind, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", kind, key, err)
	}
	return json.RawMessage(data), nil
}

// Delete removes a specific entry.
func (s *Store) Delete(kind, key string) error {
	if _, err := s.db.Exec("DELETE FROM api_cache WHERE kind = ? AND key = ?", kind, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", kind, key, err)
	}
	return nil
}

// DeleteExpired removes all expired entries and returns how many were deleted.
func (s *Store) DeleteExpired() (int64, error) {
	result, err := s.db.Exec("DELETE FROM api_cache WHERE expires_at < ?", s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
