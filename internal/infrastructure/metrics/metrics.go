// Package metrics exposes Prometheus collectors for the progress ledger:
// reward outcomes, snapshot storage health, the completion bus and HTTP traffic.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without observability in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "progress_ledger"

// Metrics holds every collector the service registers.
type Metrics struct {
	registry *prometheus.Registry

	xpAwarded     prometheus.Counter
	badgesGranted prometheus.Counter
	levelUps      prometheus.Counter
	currentXP     prometheus.Gauge
	currentLevel  prometheus.Gauge

	storageOps      *prometheus.CounterVec
	storageDuration *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec

	busEvents     *prometheus.CounterVec
	busQueueDepth prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates collectors on a fresh registry together with the Go and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "xp_awarded_total",
			Help:      "Total XP accepted by the ledger.",
		}),
		badgesGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "badges_granted_total",
			Help:      "Total number of badges newly granted.",
		}),
		levelUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rewards",
			Name:      "level_ups_total",
			Help:      "Total number of level-up transitions.",
		}),
		currentXP: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "xp",
			Help:      "Current cumulative XP.",
		}),
		currentLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "level",
			Help:      "Current derived level.",
		}),

		storageOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Snapshot storage operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		storageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operation_duration_seconds",
			Help:      "Duration of snapshot storage operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"backend", "op"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per backend (0 closed, 1 open, 2 half-open).",
		}, []string{"backend"}),

		busEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_total",
			Help:      "Completion events by outcome (published, processed, failed, dropped).",
		}, []string{"outcome"}),
		busQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Completion events waiting for the handler.",
		}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.xpAwarded,
		m.badgesGranted,
		m.levelUps,
		m.currentXP,
		m.currentLevel,
		m.storageOps,
		m.storageDuration,
		m.breakerState,
		m.busEvents,
		m.busQueueDepth,
		m.httpRequests,
		m.httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARDS
// ══════════════════════════════════════════════════════════════════════════════

// XPAwarded records an accepted XP delta.
func (m *Metrics) XPAwarded(amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpAwarded.Add(float64(amount))
}

// BadgeGranted records a newly granted badge.
func (m *Metrics) BadgeGranted() {
	if m == nil {
		return
	}
	m.badgesGranted.Inc()
}

// LevelUp records a level transition.
func (m *Metrics) LevelUp() {
	if m == nil {
		return
	}
	m.levelUps.Inc()
}

// SetLedger publishes the current XP and level.
func (m *Metrics) SetLedger(xp, level int64) {
	if m == nil {
		return
	}
	m.currentXP.Set(float64(xp))
	m.currentLevel.Set(float64(level))
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// ObserveStorage records one snapshot storage call.
func (m *Metrics) ObserveStorage(backend, op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storageOps.WithLabelValues(backend, op, result).Inc()
	m.storageDuration.WithLabelValues(backend, op).Observe(d.Seconds())
}

// SetBreakerState publishes the breaker state for a backend.
func (m *Metrics) SetBreakerState(backend string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(backend).Set(float64(state))
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION BUS
// ══════════════════════════════════════════════════════════════════════════════

// Bus outcome labels.
const (
	BusPublished = "published"
	BusProcessed = "processed"
	BusFailed    = "failed"
	BusDropped   = "dropped"
)

// BusEvent counts one bus outcome.
func (m *Metrics) BusEvent(outcome string) {
	if m == nil {
		return
	}
	m.busEvents.WithLabelValues(outcome).Inc()
}

// SetBusQueueDepth publishes the number of queued events.
func (m *Metrics) SetBusQueueDepth(n int) {
	if m == nil {
		return
	}
	m.busQueueDepth.Set(float64(n))
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

// ObserveHTTP records one HTTP request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
