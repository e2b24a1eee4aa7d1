package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
)

// SnapshotRepository implements persistence.Backend on the ledger_snapshots table.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a repository over an open connection.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Open connects, applies migrations and returns a ready backend.
func Open(ctx context.Context, cfg Config) (*SnapshotRepository, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return NewSnapshotRepository(conn), nil
}

// Get implements persistence.Backend.
func (r *SnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.conn.pool.QueryRow(ctx,
		`SELECT value FROM ledger_snapshots WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get %s: %w", key, err)
	}
	return value, nil
}

// Put implements persistence.Backend.
func (r *SnapshotRepository) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.conn.pool.Exec(ctx, `
		INSERT INTO ledger_snapshots (key, value, updated_at)
		VALUES ($1, $2::jsonb, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("postgres: put %s: %w", key, err)
	}
	return nil
}

// Delete implements persistence.Backend.
func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.conn.pool.Exec(ctx, `DELETE FROM ledger_snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}

// Close implements persistence.Backend.
func (r *SnapshotRepository) Close() error {
	r.conn.Close()
	return nil
}
