// Package sqlite is a durable key/value medium on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tinoosan/expenses/internal/storage"
)

var _ storage.KV = (*KV)(nil)

// KV stores string values in the kv table. All methods are safe for concurrent use.
type KV struct {
	db *sql.DB
}

// Open creates the database file if needed, migrates it and returns a ready KV.
func Open(ctx context.Context, dbPath string) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer at a time; sqlite would answer SQLITE_BUSY otherwise
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &KV{db: db}, nil
}

// Close releases the database handle.
func (s *KV) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ready pings the database.
func (s *KV) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

// Get implements storage.KV.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements storage.KV as a single upsert.
func (s *KV) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}
