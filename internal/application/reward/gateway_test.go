package reward

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/metrics"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink collects delivered notifications.
type recordingSink struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (s *recordingSink) Deliver(_ context.Context, n notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) kinds() []notification.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Kind, len(s.sent))
	for i, n := range s.sent {
		out[i] = n.Kind
	}
	return out
}

func (s *recordingSink) last() notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[len(s.sent)-1]
}

type fixture struct {
	gateway *Gateway
	store   *persistence.LedgerStore
	backend *memory.Backend
	sink    *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := memory.New()
	store := persistence.NewLedgerStore(backend, persistence.DefaultStoreConfig(), nil, nil)
	sink := &recordingSink{}
	ledger := progress.NewLedger()
	Restore(context.Background(), store, ledger)

	return &fixture{
		gateway: NewGateway(ledger, store, sink, WithMetrics(metrics.New())),
		store:   store,
		backend: backend,
		sink:    sink,
	}
}

func TestGateway_RewardScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res := f.gateway.AwardXP(ctx, 50, "a")
	assert.True(t, res.Applied)
	assert.False(t, res.LeveledUp)
	assert.Equal(t, progress.XP(50), f.gateway.State().XP)
	assert.Equal(t, progress.Level(1), f.gateway.State().Level())
	n := f.sink.last()
	assert.Equal(t, notification.KindXPAwarded, n.Kind)
	assert.Equal(t, progress.XP(50), n.Amount)
	assert.Equal(t, "a", n.Reason)

	res = f.gateway.AwardXP(ctx, 60, "b")
	assert.True(t, res.LeveledUp)
	assert.Equal(t, progress.XP(110), f.gateway.State().XP)
	assert.Equal(t, progress.Level(2), f.gateway.State().Level())
	n = f.sink.last()
	assert.Equal(t, notification.KindLevelUp, n.Kind)
	assert.Equal(t, progress.Level(2), n.Level)

	badge := progress.Badge{ID: "x", Title: "First"}
	assert.True(t, f.gateway.GrantBadge(ctx, badge).Granted)
	assert.Equal(t, []progress.Badge{badge}, f.gateway.State().Badges)
	n = f.sink.last()
	assert.Equal(t, notification.KindBadgeEarned, n.Kind)
	assert.Equal(t, "First", n.BadgeTitle)

	assert.False(t, f.gateway.GrantBadge(ctx, badge).Granted)
	assert.Equal(t, []progress.Badge{badge}, f.gateway.State().Badges)

	assert.Equal(t, []notification.Kind{
		notification.KindXPAwarded,
		notification.KindLevelUp,
		notification.KindBadgeEarned,
	}, f.sink.kinds())
}

func TestGateway_NonPositiveAwardIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.gateway.AwardXP(ctx, 0, "zero")
	f.gateway.AwardXP(ctx, -5, "negative")

	assert.Equal(t, progress.XP(0), f.gateway.State().XP)
	assert.Empty(t, f.sink.kinds())
	_, saved := f.backend.Raw(persistence.SnapshotKey)
	assert.False(t, saved)
}

func TestGateway_SumIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	amounts := []progress.XP{7, 93, 1, 250, 49}

	forward := newFixture(t)
	for _, a := range amounts {
		forward.gateway.AwardXP(ctx, a, "")
	}
	backward := newFixture(t)
	for i := len(amounts) - 1; i >= 0; i-- {
		backward.gateway.AwardXP(ctx, amounts[i], "")
	}

	assert.Equal(t, progress.XP(400), forward.gateway.State().XP)
	assert.Equal(t, forward.gateway.State().XP, backward.gateway.State().XP)
}

func TestGateway_RejectsInvalidBadge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.False(t, f.gateway.GrantBadge(ctx, progress.Badge{ID: "", Title: "No id"}).Granted)
	assert.False(t, f.gateway.GrantBadge(ctx, progress.Badge{ID: "no-title"}).Granted)
	assert.Empty(t, f.gateway.State().Badges)
	assert.Empty(t, f.sink.kinds())
}

func TestGateway_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.gateway.AwardXP(ctx, 130, "")
	f.gateway.GrantBadge(ctx, progress.Badge{ID: "module_a", Title: "Completed: A"})
	f.gateway.GrantBadge(ctx, progress.Badge{ID: "module_b", Title: "Completed: B"})
	want := f.gateway.State()

	// a fresh process over the same backend
	ledger := progress.NewLedger()
	require.True(t, Restore(ctx, f.store, ledger))
	assert.True(t, want.Equal(ledger.CurrentState()))
	assert.Equal(t, "module_b", ledger.CurrentState().Badges[0].ID)
}

func TestGateway_AwardNearIntegerLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.gateway.GrantBadge(ctx, progress.Badge{ID: "x", Title: "X"})
	require.True(t, f.gateway.AwardXP(ctx, progress.MaxXP-10, "").Applied)

	res := f.gateway.AwardXP(ctx, 20, "")
	assert.False(t, res.Applied)
	assert.Equal(t, progress.MaxXP-10, f.gateway.State().XP)
	assert.GreaterOrEqual(t, int64(f.gateway.State().XP), int64(0))
	notified := len(f.sink.kinds())

	require.True(t, f.gateway.AwardXP(ctx, 10, "").Applied)
	assert.Equal(t, progress.MaxXP, f.gateway.State().XP)
	assert.Len(t, f.sink.kinds(), notified+1)

	ledger := progress.NewLedger()
	require.True(t, Restore(ctx, f.store, ledger))
	restored := ledger.CurrentState()
	assert.Equal(t, progress.MaxXP, restored.XP)
	assert.True(t, restored.HasBadge("x"))
}

func TestGateway_Reset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.gateway.AwardXP(ctx, 250, "")
	f.gateway.GrantBadge(ctx, progress.Badge{ID: "x", Title: "X"})
	notified := len(f.sink.kinds())

	state := f.gateway.Reset(ctx)

	assert.True(t, progress.EmptyState().Equal(state))
	assert.True(t, progress.EmptyState().Equal(f.gateway.State()))
	assert.Len(t, f.sink.kinds(), notified)
	_, found := f.store.Load(ctx)
	assert.False(t, found)
}

func TestGateway_StorageFailureDoesNotAffectLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.FailOn(memory.OpPut, errors.New("quota exceeded"))

	res := f.gateway.AwardXP(ctx, 20, "offline")

	assert.True(t, res.Applied)
	assert.Equal(t, progress.XP(20), f.gateway.State().XP)
	assert.Equal(t, []notification.Kind{notification.KindXPAwarded}, f.sink.kinds())
}

func TestGateway_Watch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var seen []progress.XP
	cancel := f.gateway.Watch(func(s progress.State) { seen = append(seen, s.XP) })

	f.gateway.AwardXP(ctx, 10, "")
	f.gateway.AwardXP(ctx, 0, "")
	f.gateway.GrantBadge(ctx, progress.Badge{ID: "x", Title: "X"})
	f.gateway.GrantBadge(ctx, progress.Badge{ID: "x", Title: "X"})
	f.gateway.Reset(ctx)

	cancel()
	cancel()
	f.gateway.AwardXP(ctx, 5, "")

	assert.Equal(t, []progress.XP{10, 10, 0}, seen)
}

func TestGateway_PanickingCollaboratorsAreContained(t *testing.T) {
	ctx := context.Background()
	ledger := progress.NewLedger()
	store := persistence.NewLedgerStore(memory.New(), persistence.DefaultStoreConfig(), nil, nil)
	sink := notification.SinkFunc(func(context.Context, notification.Notification) error { panic("toast crashed") })
	g := NewGateway(ledger, store, sink)
	g.Watch(func(progress.State) { panic("view crashed") })

	assert.NotPanics(t, func() {
		g.AwardXP(ctx, 10, "")
		g.GrantBadge(ctx, progress.Badge{ID: "x", Title: "X"})
	})
	assert.Equal(t, progress.XP(10), g.State().XP)
}

func TestGateway_ConcurrentAwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.gateway.AwardXP(ctx, 2, "")
		}()
	}
	wg.Wait()

	assert.Equal(t, progress.XP(100), f.gateway.State().XP)
	loaded, found := f.store.Load(ctx)
	require.True(t, found)
	assert.Equal(t, progress.XP(100), loaded.XP)
	assert.Len(t, f.sink.kinds(), 50)
}
