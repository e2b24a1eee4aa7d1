// Package service contains infrastructure adapters for application ports.
package service

import (
	"context"
	"sync"

	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// DefaultFeedCapacity is the number of notifications a Feed keeps by default.
const DefaultFeedCapacity = 50

// ─────────────────────────────────────────────────────────────────────────────
// Log sink
// ─────────────────────────────────────────────────────────────────────────────

// LogSink writes every notification to the structured log.
type LogSink struct {
	log *logger.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to logger.Default().
func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Default()
	}
	return &LogSink{log: log.With(logger.Component("notifications"))}
}

// Deliver implements notification.Sink.
func (s *LogSink) Deliver(_ context.Context, n notification.Notification) error {
	s.log.Info(n.Message(),
		logger.String("notification_id", n.ID),
		logger.String("kind", n.Kind.String()),
	)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Feed
// ─────────────────────────────────────────────────────────────────────────────

// Feed keeps a bounded history of recent notifications for polling surfaces.
// The oldest entry is evicted once capacity is reached.
type Feed struct {
	mu       sync.RWMutex
	items    []notification.Notification
	capacity int
}

// NewFeed creates a Feed. capacity <= 0 uses DefaultFeedCapacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &Feed{
		items:    make([]notification.Notification, 0, capacity),
		capacity: capacity,
	}
}

// Deliver implements notification.Sink.
func (f *Feed) Deliver(_ context.Context, n notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.items) == f.capacity {
		copy(f.items, f.items[1:])
		f.items = f.items[:len(f.items)-1]
	}
	f.items = append(f.items, n)
	return nil
}

// Recent returns up to limit notifications, newest first.
// limit <= 0 returns the whole history.
func (f *Feed) Recent(limit int) []notification.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.items) {
		limit = len(f.items)
	}

	out := make([]notification.Notification, 0, limit)
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.items[i])
	}
	return out
}

// Len returns the number of stored notifications.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Clear drops the history.
func (f *Feed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = f.items[:0]
}
