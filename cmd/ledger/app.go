package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alem-hub/progress-ledger/config"
	"github.com/alem-hub/progress-ledger/internal/application/eventhandler"
	"github.com/alem-hub/progress-ledger/internal/application/query"
	"github.com/alem-hub/progress-ledger/internal/application/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/badger"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/service"
	"github.com/alem-hub/progress-ledger/internal/interface/cli/presenter"
	"github.com/alem-hub/progress-ledger/pkg/logger"
	"github.com/alem-hub/progress-ledger/pkg/retry"
)

// connectAttempts - попытки подключения к redis/postgres при старте.
const connectAttempts = 4

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// Один экземпляр журнала на процесс: всё создаётся здесь и передаётся
// через конструкторы.
// ══════════════════════════════════════════════════════════════════════════════

// app собирает все компоненты ledger.
type app struct {
	cfg         *config.Config
	log         *logger.Logger
	metrics     *metrics.Metrics
	store       *persistence.LedgerStore
	gateway     *reward.Gateway
	bus         *messaging.CompletionBus
	feed        *service.Feed
	celebration *eventhandler.Celebration
	indicator   *query.LevelIndicator
	presenter   *presenter.Presenter
	restored    bool
}

// appOptions управляет тем, что подключается к шлюзу.
type appOptions struct {
	// out - куда CLI печатает toast-уведомления и карточку уровня.
	out io.Writer

	// toasts - печатать уведомления в out.
	toasts bool
}

// newLogger создаёт логгер по конфигурации.
func newLogger(cfg *config.Config, out io.Writer) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = out
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	opts.Format = logger.Format(cfg.Observability.LogFormat)

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}

// buildApp открывает хранилище, восстанавливает снимок и связывает компоненты.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger, opts appOptions) (*app, error) {
	if opts.out == nil {
		opts.out = os.Stdout
	}

	m := metrics.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 1. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Storage.Backend, err)
	}

	store := persistence.NewLedgerStore(backend, persistence.StoreConfig{
		BackendName:      cfg.Storage.Backend,
		Key:              cfg.Storage.Key,
		OpTimeout:        cfg.Storage.OpTimeout,
		BreakerThreshold: cfg.Storage.BreakerThreshold,
		BreakerCooldown:  cfg.Storage.BreakerCooldown,
	}, log, m)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ЖУРНАЛ И ШЛЮЗ
	// ─────────────────────────────────────────────────────────────────────────
	ledger := progress.NewLedger()
	restored := reward.Restore(ctx, store, ledger)

	feed := service.NewFeed(cfg.Rewards.NotificationHistory)
	pres := presenter.New(opts.out)

	sinks := notification.FanOut{service.NewLogSink(log), feed}
	if opts.toasts {
		sinks = append(sinks, pres)
	}

	gateway := reward.NewGateway(ledger, store, sinks,
		reward.WithLogger(log),
		reward.WithMetrics(m),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ШИНА ЗАВЕРШЕНИЙ
	// ─────────────────────────────────────────────────────────────────────────
	celebration := eventhandler.NewCelebration(cfg.Rewards.CelebrationDuration, func(active bool) {
		if active && opts.toasts {
			fmt.Fprintln(opts.out, pres.FormatCelebration())
		}
	})

	bus := messaging.NewCompletionBus(messaging.CompletionBusConfig{
		Logger:      log,
		Metrics:     m,
		Middlewares: []messaging.Middleware{messaging.LoggingMiddleware(log)},
	})

	handlerCfg := eventhandler.DefaultUnitCompletedConfig()
	handlerCfg.CompletionXP = progress.XP(cfg.Rewards.CompletionXP)
	handlerCfg.BadgePrefix = cfg.Rewards.BadgePrefix

	handler := eventhandler.NewOnUnitCompletedHandler(gateway, celebration, log, handlerCfg)
	if _, err := handler.Register(bus); err != nil {
		_ = bus.Close()
		_ = store.Close()
		return nil, fmt.Errorf("register completion handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНДИКАТОР УРОВНЯ
	// ─────────────────────────────────────────────────────────────────────────
	indicator := query.NewLevelIndicator(gateway, cfg.Rewards.RecentBadges, func(v query.LevelView) {
		log.Debug("level view updated",
			logger.LevelField(int64(v.Level)),
			logger.XPTotal(int64(v.XP)),
			logger.Int("badges", v.BadgeCount),
		)
	})

	log.Info("ledger ready",
		logger.Backend(cfg.Storage.Backend),
		logger.Bool("restored", restored),
		logger.XPTotal(int64(ledger.CurrentState().XP)),
	)

	return &app{
		cfg:         cfg,
		log:         log,
		metrics:     m,
		store:       store,
		gateway:     gateway,
		bus:         bus,
		feed:        feed,
		celebration: celebration,
		indicator:   indicator,
		presenter:   pres,
		restored:    restored,
	}, nil
}

// Close дожидается очереди шины и закрывает хранилище.
func (a *app) Close(ctx context.Context) error {
	if err := a.bus.Flush(ctx); err != nil {
		a.log.Warn("completion queue not drained", logger.Err(err))
	}
	_ = a.bus.Close()
	a.indicator.Close()
	a.celebration.Stop()
	return a.store.Close()
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKEND FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// openBackend создаёт backend снимков по имени из конфигурации.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (persistence.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendBadger:
		return badger.Open(badger.Config{
			Path:           cfg.Badger.Path,
			InMemory:       cfg.Badger.InMemory,
			SyncWrites:     cfg.Badger.SyncWrites,
			GCInterval:     cfg.Badger.GCInterval,
			GCDiscardRatio: cfg.Badger.GCDiscardRatio,
		}, log)

	case config.BackendSQLite:
		return sqlite.Open(ctx, cfg.SQLite.Path)

	case config.BackendRedis:
		redisCfg := redis.DefaultConfig()
		redisCfg.URL = cfg.Redis.URL
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.KeyPrefix = cfg.Redis.KeyPrefix
		redisCfg.PoolSize = cfg.Redis.PoolSize
		return connect(ctx, log, func(ctx context.Context) (persistence.Backend, error) {
			return redis.New(ctx, redisCfg)
		})

	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.URL = cfg.Database.URL
		pgCfg.Host = cfg.Database.Host
		pgCfg.Port = cfg.Database.Port
		pgCfg.Database = cfg.Database.Name
		pgCfg.User = cfg.Database.User
		pgCfg.Password = cfg.Database.Password
		pgCfg.SSLMode = cfg.Database.SSLMode
		pgCfg.MaxConns = cfg.Database.MaxConns
		return connect(ctx, log, func(ctx context.Context) (persistence.Backend, error) {
			return postgres.Open(ctx, pgCfg)
		})

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// connect повторяет подключение к сетевому backend, который может
// стартовать позже приложения.
func connect(ctx context.Context, log *logger.Logger, open func(context.Context) (persistence.Backend, error)) (persistence.Backend, error) {
	return retry.DoWithData(ctx, open,
		retry.WithMaxAttempts(connectAttempts),
		retry.WithInitialDelay(200*time.Millisecond),
		retry.WithMaxDelay(2*time.Second),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("storage backend not reachable, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)
}
