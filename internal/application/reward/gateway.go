// Package reward содержит RewardGateway - единственную точку входа для
// изменения журнала прогресса.
//
// Каждая операция шлюза - составная: мутация журнала, сохранение снимка,
// уведомление пользователя и оповещение подписчиков. Шлюз сериализует
// такие операции под одним мьютексом, поэтому конкурентные вызовы из HTTP,
// CLI и шины событий видят строго последовательную историю.
package reward

import (
	"context"
	"fmt"
	"sync"

	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Store - порт сохранения снимка. Реализация обязана поглощать ошибки.
type Store interface {
	Save(ctx context.Context, state progress.State)
	Clear(ctx context.Context)
}

// Loader - порт чтения снимка при старте.
type Loader interface {
	Load(ctx context.Context) (progress.State, bool)
}

// Watcher получает новое состояние после каждой успешной мутации.
// Вызывается синхронно внутри операции шлюза: наблюдатель не должен
// вызывать мутирующие методы шлюза.
type Watcher func(state progress.State)

// ══════════════════════════════════════════════════════════════════════════════
// RESULTS
// ══════════════════════════════════════════════════════════════════════════════

// XPResult описывает исход начисления XP.
type XPResult struct {
	// Applied - false, если сумма была отклонена (<= 0 или переполнение).
	Applied bool

	// LeveledUp - уровень вырос.
	LeveledUp bool

	// Previous и Current - состояние до и после операции.
	Previous progress.State
	Current  progress.State
}

// BadgeResult описывает исход выдачи бейджа.
type BadgeResult struct {
	// Granted - бейдж выдан впервые.
	Granted bool

	// State - состояние после операции.
	State progress.State
}

// ══════════════════════════════════════════════════════════════════════════════
// GATEWAY
// ══════════════════════════════════════════════════════════════════════════════

// Gateway - фасад над журналом, хранилищем и уведомлениями.
// Ни один метод не возвращает ошибку и не паникует наружу.
type Gateway struct {
	mu sync.Mutex

	ledger  *progress.Ledger
	store   Store
	sink    notification.Sink
	log     *logger.Logger
	metrics *metrics.Metrics

	watchMu  sync.RWMutex
	watchers map[uint64]Watcher
	nextID   uint64
}

// Option настраивает Gateway.
type Option func(*Gateway)

// WithLogger задаёт логгер.
func WithLogger(log *logger.Logger) Option {
	return func(g *Gateway) {
		if log != nil {
			g.log = log
		}
	}
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway создаёт шлюз. ledger и store обязательны; sink может быть nil.
func NewGateway(ledger *progress.Ledger, store Store, sink notification.Sink, opts ...Option) *Gateway {
	if sink == nil {
		sink = notification.Discard
	}

	g := &Gateway{
		ledger:   ledger,
		store:    store,
		sink:     sink,
		log:      logger.Nop(),
		watchers: make(map[uint64]Watcher),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("reward_gateway"))

	state := ledger.CurrentState()
	g.metrics.SetLedger(int64(state.XP), int64(state.Level()))

	return g
}

// Restore загружает снимок из loader в ledger. Вызывается один раз при старте,
// до создания шлюза. Возвращает true, если снимок был найден.
func Restore(ctx context.Context, loader Loader, ledger *progress.Ledger) bool {
	state, found := loader.Load(ctx)
	if !found {
		ledger.Hydrate(progress.EmptyState())
		return false
	}
	ledger.Hydrate(state)
	return true
}

// AwardXP начисляет amount очков опыта.
//
// Сумма <= 0 игнорируется без сохранения и уведомления. Иначе состояние
// сохраняется и отправляется одно уведомление: LevelUp, если уровень вырос,
// либо XPAwarded.
func (g *Gateway) AwardXP(ctx context.Context, amount progress.XP, reason string) XPResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev, next := g.ledger.ApplyXPDelta(amount)
	if next.XP == prev.XP {
		g.log.Debug("xp award rejected", logger.XPAmount(int64(amount)))
		return XPResult{Previous: prev, Current: next}
	}

	g.store.Save(ctx, next)

	result := XPResult{
		Applied:   true,
		LeveledUp: next.Level() > prev.Level(),
		Previous:  prev,
		Current:   next,
	}

	g.metrics.XPAwarded(int64(amount))
	g.metrics.SetLedger(int64(next.XP), int64(next.Level()))

	if result.LeveledUp {
		g.metrics.LevelUp()
		g.notify(ctx, notification.NewLevelUp(next.Level()))
	} else {
		g.notify(ctx, notification.NewXPAwarded(amount, reason))
	}

	g.log.Info("xp awarded",
		logger.XPAmount(int64(amount)),
		logger.XPTotal(int64(next.XP)),
		logger.LevelField(int64(next.Level())),
		logger.String("reason", reason),
	)

	g.broadcast(next)
	return result
}

// GrantBadge выдаёт бейдж. Повторная выдача бейджа с тем же ID - тихий no-op:
// без сохранения и без уведомления.
func (g *Gateway) GrantBadge(ctx context.Context, badge progress.Badge) BadgeResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := badge.Validate(); err != nil {
		g.log.Warn("badge rejected", logger.BadgeID(badge.ID), logger.Err(err))
		return BadgeResult{State: g.ledger.CurrentState()}
	}

	state, granted := g.ledger.ApplyBadgeGrant(badge)
	if !granted {
		g.log.Debug("badge already earned", logger.BadgeID(badge.ID))
		return BadgeResult{State: state}
	}

	g.store.Save(ctx, state)
	g.metrics.BadgeGranted()
	g.notify(ctx, notification.NewBadgeEarned(badge))

	g.log.Info("badge granted",
		logger.BadgeID(badge.ID),
		logger.String("title", badge.Title),
	)

	g.broadcast(state)
	return BadgeResult{Granted: true, State: state}
}

// Reset возвращает журнал в пустое состояние и удаляет снимок.
// Уведомление не отправляется.
func (g *Gateway) Reset(ctx context.Context) progress.State {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.ledger.ResetState()
	g.store.Clear(ctx)
	g.metrics.SetLedger(0, int64(state.Level()))

	g.log.Info("ledger reset")

	g.broadcast(state)
	return state
}

// State возвращает копию текущего состояния.
func (g *Gateway) State() progress.State {
	return g.ledger.CurrentState()
}

// Watch подписывает fn на изменения состояния. Возвращает функцию отписки;
// повторный вызов отписки безопасен.
func (g *Gateway) Watch(fn Watcher) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	g.watchMu.Lock()
	id := g.nextID
	g.nextID++
	g.watchers[id] = fn
	g.watchMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.watchMu.Lock()
			delete(g.watchers, id)
			g.watchMu.Unlock()
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (g *Gateway) notify(ctx context.Context, n notification.Notification) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("notification sink panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()

	if err := g.sink.Deliver(ctx, n); err != nil {
		g.log.Warn("notification delivery failed",
			logger.String("kind", n.Kind.String()),
			logger.Err(err),
		)
	}
}

func (g *Gateway) broadcast(state progress.State) {
	g.watchMu.RLock()
	watchers := make([]Watcher, 0, len(g.watchers))
	for _, w := range g.watchers {
		watchers = append(watchers, w)
	}
	g.watchMu.RUnlock()

	for _, w := range watchers {
		g.callWatcher(w, state.Clone())
	}
}

func (g *Gateway) callWatcher(w Watcher, state progress.State) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("state watcher panicked", logger.String("panic", fmt.Sprint(r)))
		}
	}()
	w(state)
}
