// Package memory provides an in-process snapshot backend. It is used when
// durability is not wanted (demos, tests) and as a fault-injection double.
package memory

import (
	"context"
	"sync"

	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
)

// Backend keeps values in a map.
type Backend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	failOn map[string]error
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		data:   make(map[string][]byte),
		failOn: make(map[string]error),
	}
}

// Op names accepted by FailOn.
const (
	OpGet    = "get"
	OpPut    = "put"
	OpDelete = "delete"
)

// FailOn makes every later call of op return err. A nil err clears it.
func (b *Backend) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		delete(b.failOn, op)
		return
	}
	b.failOn[op] = err
}

// Get implements persistence.Backend.
func (b *Backend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.check(ctx, OpGet); err != nil {
		return nil, err
	}
	v, ok := b.data[key]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements persistence.Backend.
func (b *Backend) Put(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx, OpPut); err != nil {
		return err
	}
	b.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements persistence.Backend.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.check(ctx, OpDelete); err != nil {
		return err
	}
	delete(b.data, key)
	return nil
}

// Close implements persistence.Backend.
func (b *Backend) Close() error {
	return nil
}

// Raw returns the stored bytes without fault injection.
func (b *Backend) Raw(key string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	return v, ok
}

// SetRaw stores bytes without fault injection, e.g. to plant a corrupt snapshot.
func (b *Backend) SetRaw(key string, value []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
}

// must be called with mu held
func (b *Backend) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.failOn[op]
}
