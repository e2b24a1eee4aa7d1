// Package messaging implements the in-process completion bus: many producers
// announce finished units of work and exactly one handler turns them into
// rewards, one event at a time, in publish order.
package messaging

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrEventBusClosed is returned when publishing to or subscribing on a closed bus.
	ErrEventBusClosed = shared.NewDomainError("messaging", "Publish", shared.ErrClosed, "event bus is closed")

	// ErrHandlerAlreadyRegistered is returned when a second handler subscribes.
	ErrHandlerAlreadyRegistered = shared.NewDomainError("messaging", "Subscribe", shared.ErrAlreadyExists, "completion handler already registered")

	// ErrNilHandler is returned when subscribing a nil handler.
	ErrNilHandler = shared.NewDomainError("messaging", "Subscribe", shared.ErrInvalidInput, "handler cannot be nil")

	// ErrNilEvent is returned when publishing a nil event.
	ErrNilEvent = shared.NewDomainError("messaging", "Publish", shared.ErrInvalidInput, "event cannot be nil")

	// ErrUnexpectedEventType is returned when an event of another type is published.
	ErrUnexpectedEventType = shared.NewDomainError("messaging", "Publish", shared.ErrInvalidInput, "unexpected event type")
)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics counts bus outcomes.
type EventBusMetrics struct {
	published atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// EventBusStats is a point-in-time copy of EventBusMetrics.
type EventBusStats struct {
	Published int64
	Processed int64
	Failed    int64
	Dropped   int64
}

// Snapshot returns the current counters.
func (m *EventBusMetrics) Snapshot() EventBusStats {
	return EventBusStats{
		Published: m.published.Load(),
		Processed: m.processed.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION BUS
// ══════════════════════════════════════════════════════════════════════════════

// CompletionBusConfig contains configuration for CompletionBus.
type CompletionBusConfig struct {
	// EventType is the single event type the bus routes.
	// Default: shared.EventUnitCompleted.
	EventType shared.EventType

	// Logger for structured logging.
	Logger *logger.Logger

	// Metrics exports counters to Prometheus. Optional.
	Metrics *metrics.Metrics

	// Middlewares wrap the registered handler, first is outermost.
	// Panic recovery is always applied outside of them.
	Middlewares []Middleware
}

// CompletionBus is a FIFO, single-consumer event bus.
//
// Publish never blocks on handling: events are queued and a single worker
// goroutine delivers them to the registered handler in publish order.
// Events dispatched while no handler is registered are dropped.
type CompletionBus struct {
	eventType   shared.EventType
	log         *logger.Logger
	prom        *metrics.Metrics
	stats       EventBusMetrics
	middlewares []Middleware

	mu        sync.Mutex
	queue     []shared.Event
	handler   shared.EventHandler
	handlerID uint64
	pending   int
	idle      chan struct{}
	closed    bool

	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCompletionBus creates the bus and starts its worker.
func NewCompletionBus(config CompletionBusConfig) *CompletionBus {
	if config.EventType == "" {
		config.EventType = shared.EventUnitCompleted
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}

	idle := make(chan struct{})
	close(idle)

	ctx, cancel := context.WithCancel(context.Background())

	b := &CompletionBus{
		eventType:   config.EventType,
		log:         config.Logger.With(logger.Component("completion_bus")),
		prom:        config.Metrics,
		middlewares: config.Middlewares,
		idle:        idle,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}

	go b.run()

	return b
}

// Subscribe registers the one handler. A second registration fails with
// ErrHandlerAlreadyRegistered until the first one unsubscribes.
func (b *CompletionBus) Subscribe(handler shared.EventHandler) (unsubscribe func(), err error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrEventBusClosed
	}
	if b.handler != nil {
		return nil, ErrHandlerAlreadyRegistered
	}

	b.handlerID++
	id := b.handlerID
	b.handler = Chain(handler, b.middlewares...)
	b.log.Debug("handler subscribed", logger.String("event_type", string(b.eventType)))

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.handlerID == id {
				b.handler = nil
			}
		})
	}, nil
}

// Publish enqueues event and returns immediately.
func (b *CompletionBus) Publish(event shared.Event) error {
	if event == nil {
		return ErrNilEvent
	}
	if e, ok := event.(*shared.UnitCompletedEvent); ok && e == nil {
		return ErrNilEvent
	}
	if event.EventType() != b.eventType {
		return ErrUnexpectedEventType
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrEventBusClosed
	}
	if b.pending == 0 {
		b.idle = make(chan struct{})
	}
	b.pending++
	b.queue = append(b.queue, event)
	depth := len(b.queue)
	b.mu.Unlock()

	b.stats.published.Add(1)
	b.prom.BusEvent(metrics.BusPublished)
	b.prom.SetBusQueueDepth(depth)
	b.signal()

	return nil
}

// Flush waits until every event published so far has been handled.
func (b *CompletionBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	idle := b.idle
	b.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting events, drains the queue and stops the worker.
func (b *CompletionBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.signal()
	<-b.done
	b.cancel()

	b.log.Info("completion bus closed")
	return nil
}

// Metrics returns the bus counters.
func (b *CompletionBus) Metrics() EventBusStats {
	return b.stats.Snapshot()
}

func (b *CompletionBus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *CompletionBus) run() {
	defer close(b.done)

	for {
		b.mu.Lock()
		for len(b.queue) == 0 {
			if b.closed {
				b.mu.Unlock()
				return
			}
			b.mu.Unlock()
			<-b.wake
			b.mu.Lock()
		}

		event := b.queue[0]
		b.queue[0] = nil
		b.queue = b.queue[1:]
		handler := b.handler
		depth := len(b.queue)
		b.mu.Unlock()

		b.prom.SetBusQueueDepth(depth)
		b.dispatch(event, handler)

		b.mu.Lock()
		b.pending--
		if b.pending == 0 {
			close(b.idle)
		}
		b.mu.Unlock()
	}
}

func (b *CompletionBus) dispatch(event shared.Event, handler shared.EventHandler) {
	if handler == nil {
		b.stats.dropped.Add(1)
		b.prom.BusEvent(metrics.BusDropped)
		b.log.Debug("no handler for event, dropped",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
		)
		return
	}

	err := RecoveryMiddleware(b.log)(handler)(b.ctx, event)
	if err != nil {
		b.stats.failed.Add(1)
		b.prom.BusEvent(metrics.BusFailed)
		b.log.Error("handler error",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return
	}

	b.stats.processed.Add(1)
	b.prom.BusEvent(metrics.BusProcessed)
}
