// Package persistence keeps the progress ledger snapshot across restarts.
//
// The package is split in two layers:
//   - Backend: a tiny key/value contract implemented by memory, badger,
//     sqlite, redis and postgres subpackages.
//   - LedgerStore: the best-effort boundary used by the reward gateway. It
//     encodes the state, guards the backend with a timeout and a circuit
//     breaker, and never returns an error to its caller.
package persistence

import (
	"context"
	"errors"
)

// SnapshotKey is the single fixed, versioned key the ledger is stored under.
// A future incompatible layout gets a new key rather than a migration.
const SnapshotKey = "progress_ledger_v1"

// ErrNotFound is returned by a Backend when the key has no value.
var ErrNotFound = errors.New("persistence: key not found")

// Backend is a durable key/value store for snapshot bytes.
type Backend interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}
