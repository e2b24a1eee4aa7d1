package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-ledger/pkg/circuitbreaker"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// StoreConfig configures the best-effort boundary around a Backend.
type StoreConfig struct {
	// BackendName labels logs and metrics, e.g. "badger".
	BackendName string

	// Key is the snapshot key. Defaults to SnapshotKey.
	Key string

	// OpTimeout bounds every backend call.
	OpTimeout time.Duration

	// BreakerThreshold is the number of consecutive failures that open the breaker.
	BreakerThreshold int

	// BreakerCooldown is how long an open breaker rejects calls.
	BreakerCooldown time.Duration
}

// DefaultStoreConfig returns sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BackendName:      "memory",
		Key:              SnapshotKey,
		OpTimeout:        2 * time.Second,
		BreakerThreshold: 3,
		BreakerCooldown:  10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER STORE
// ══════════════════════════════════════════════════════════════════════════════

// LedgerStore reads and writes the ledger snapshot on a best-effort basis.
// None of its methods return an error: failures are logged and counted, and
// the in-memory ledger stays authoritative.
type LedgerStore struct {
	backend Backend
	config  StoreConfig
	breaker *circuitbreaker.CircuitBreaker
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewLedgerStore wraps backend. log and m may be nil.
func NewLedgerStore(backend Backend, config StoreConfig, log *logger.Logger, m *metrics.Metrics) *LedgerStore {
	defaults := DefaultStoreConfig()
	if config.BackendName == "" {
		config.BackendName = defaults.BackendName
	}
	if config.Key == "" {
		config.Key = defaults.Key
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = defaults.OpTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.Component("ledger_store"), logger.Backend(config.BackendName))

	s := &LedgerStore{
		backend: backend,
		config:  config,
		log:     log,
		metrics: m,
	}

	s.breaker = circuitbreaker.New(
		"storage-"+config.BackendName,
		circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
		circuitbreaker.WithCooldown(config.BreakerCooldown),
		circuitbreaker.WithIsFailure(func(err error) bool { return !errors.Is(err, ErrNotFound) }),
		circuitbreaker.WithOnStateChange(s.onBreakerStateChange),
	)
	m.SetBreakerState(config.BackendName, int(circuitbreaker.StateClosed))

	return s
}

// Load reads the snapshot. The boolean is false when nothing usable was
// stored: a missing key, an unreachable backend and a malformed snapshot all
// come back as (empty state, false).
func (s *LedgerStore) Load(ctx context.Context) (progress.State, bool) {
	var data []byte
	err := s.call(ctx, "load", func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, s.config.Key)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("snapshot load failed, starting empty", logger.Err(err))
		}
		return progress.EmptyState(), false
	}

	state, err := DecodeState(data)
	if err != nil {
		if shared.IsNotFound(err) {
			return progress.EmptyState(), false
		}
		s.log.Warn("stored snapshot is malformed, starting empty", logger.Err(err))
		return progress.EmptyState(), false
	}

	s.log.Debug("snapshot loaded",
		logger.XPTotal(int64(state.XP)),
		logger.Int("badges", len(state.Badges)),
	)
	return state, true
}

// Save replaces the stored snapshot with state.
func (s *LedgerStore) Save(ctx context.Context, state progress.State) {
	data, err := EncodeState(state)
	if err != nil {
		s.log.Error("snapshot encode failed", logger.Err(err))
		return
	}

	err = s.call(ctx, "save", func(ctx context.Context) error {
		return s.backend.Put(ctx, s.config.Key, data)
	})
	switch {
	case err == nil:
	case shared.IsUnavailable(err):
		s.log.Warn("storage unavailable, snapshot not saved", logger.Backend(s.config.BackendName), logger.Err(err))
	default:
		s.log.Warn("snapshot save failed, keeping in-memory state", logger.Err(err))
	}
}

// Clear removes the stored snapshot.
func (s *LedgerStore) Clear(ctx context.Context) {
	err := s.call(ctx, "clear", func(ctx context.Context) error {
		return s.backend.Delete(ctx, s.config.Key)
	})
	if err != nil {
		s.log.Warn("snapshot clear failed", logger.Err(err))
	}
}

// Close closes the backend.
func (s *LedgerStore) Close() error {
	return s.backend.Close()
}

// BreakerState reports the circuit breaker state, for health endpoints.
func (s *LedgerStore) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

// BackendName returns the configured backend label.
func (s *LedgerStore) BackendName() string {
	return s.config.BackendName
}

func (s *LedgerStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.config.OpTimeout)
		defer cancel()

		err := fn(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return shared.WrapError("persistence", op, shared.ErrTimeout, "backend call timed out", err)
		}
		return err
	})

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		err = shared.WrapError("persistence", op, shared.ErrServiceUnavailable, "storage circuit open", err)
	}

	observed := err
	if errors.Is(err, ErrNotFound) {
		observed = nil
	}
	s.metrics.ObserveStorage(s.config.BackendName, op, observed, time.Since(start))

	return err
}

func (s *LedgerStore) onBreakerStateChange(name string, from, to circuitbreaker.State) {
	s.log.Warn("storage circuit breaker state changed",
		logger.String("breaker", name),
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
	s.metrics.SetBreakerState(s.config.BackendName, int(to))
}
