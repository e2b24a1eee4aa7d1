// Package sqlite implements the snapshot backend on an embedded SQLite file
// through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_snapshots (
    key        TEXT    PRIMARY KEY,
    value      BLOB    NOT NULL,
    updated_at INTEGER NOT NULL
)`

// Backend stores snapshots in a SQLite table.
type Backend struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database file at path, creating it and the schema if needed.
func Open(ctx context.Context, path string) (*Backend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite: storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	// single writer; the ledger is one row
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}

	b := NewWithDB(sqlDB)
	if err := b.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return b, nil
}

// NewWithDB wraps an already opened handle. The schema is not created;
// call Migrate.
func NewWithDB(db *sql.DB) *Backend {
	return &Backend{sqlDB: db, now: time.Now}
}

// Migrate creates the snapshot table.
func (b *Backend) Migrate(ctx context.Context) error {
	if _, err := b.sqlDB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: run migrations: %w", err)
	}
	return nil
}

// Get implements persistence.Backend.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := b.sqlDB.QueryRowContext(ctx,
		`SELECT value FROM ledger_snapshots WHERE key = ?`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", key, err)
	}
	return value, nil
}

// Put implements persistence.Backend.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.sqlDB.ExecContext(ctx,
		`INSERT INTO ledger_snapshots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, b.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: put %s: %w", key, err)
	}
	return nil
}

// Delete implements persistence.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.sqlDB.ExecContext(ctx, `DELETE FROM ledger_snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

// Close closes the SQLite handle.
func (b *Backend) Close() error {
	if b == nil || b.sqlDB == nil {
		return nil
	}
	return b.sqlDB.Close()
}
