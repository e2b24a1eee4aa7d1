package eventhandler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alem-hub/progress-ledger/internal/application/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindRecorder struct {
	mu    sync.Mutex
	kinds []notification.Kind
}

func (r *kindRecorder) Deliver(_ context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, n.Kind)
	return nil
}

func (r *kindRecorder) snapshot() []notification.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Kind(nil), r.kinds...)
}

func newPipeline(t *testing.T) (*messaging.CompletionBus, *reward.Gateway, *kindRecorder, *Celebration) {
	t.Helper()

	store := persistence.NewLedgerStore(memory.New(), persistence.DefaultStoreConfig(), nil, nil)
	sink := &kindRecorder{}
	gateway := reward.NewGateway(progress.NewLedger(), store, sink)
	celebration := NewCelebration(time.Hour, nil)
	t.Cleanup(celebration.Stop)

	bus := messaging.NewCompletionBus(messaging.CompletionBusConfig{})
	t.Cleanup(func() { _ = bus.Close() })

	handler := NewOnUnitCompletedHandler(gateway, celebration, nil, DefaultUnitCompletedConfig())
	_, err := handler.Register(bus)
	require.NoError(t, err)

	return bus, gateway, sink, celebration
}

func flushBus(t *testing.T, bus *messaging.CompletionBus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Flush(ctx))
}

func TestOnUnitCompleted_RepublishAwardsXPButNotBadge(t *testing.T) {
	bus, gateway, sink, celebration := newPipeline(t)

	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent("cap1", "Trees")))
	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent("cap1", "Trees")))
	flushBus(t, bus)

	state := gateway.State()
	assert.Equal(t, progress.XP(100), state.XP)
	require.Len(t, state.Badges, 1)
	assert.Equal(t, progress.Badge{ID: "module_cap1", Title: "Completed: Trees"}, state.Badges[0])

	// first: +50 XP then badge; second: level up (100 XP), no badge
	assert.Equal(t, []notification.Kind{
		notification.KindXPAwarded,
		notification.KindBadgeEarned,
		notification.KindLevelUp,
	}, sink.snapshot())
	assert.True(t, celebration.Active())
}

func TestOnUnitCompleted_XPPrecedesBadge(t *testing.T) {
	bus, _, sink, _ := newPipeline(t)

	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent("a", "A")))
	require.NoError(t, bus.Publish(shared.NewUnitCompletedEvent("b", "B")))
	flushBus(t, bus)

	assert.Equal(t, []notification.Kind{
		notification.KindXPAwarded,
		notification.KindBadgeEarned,
		notification.KindLevelUp,
		notification.KindBadgeEarned,
	}, sink.snapshot())
}

func TestOnUnitCompleted_HandleRejectsBadInput(t *testing.T) {
	_, gateway, _, _ := newPipeline(t)
	h := NewOnUnitCompletedHandler(gateway, nil, nil, UnitCompletedConfig{})
	ctx := context.Background()

	err := h.Handle(ctx, shared.NewUnitCompletedEvent("", "Untitled"))
	assert.ErrorIs(t, err, shared.ErrEmptySourceID)

	other := shared.NewBaseEvent("other", "x")
	assert.Error(t, h.Handle(ctx, otherEvent{other}))

	assert.Equal(t, progress.XP(0), gateway.State().XP)
}

func TestOnUnitCompleted_PointerEventAndDefaults(t *testing.T) {
	_, gateway, _, _ := newPipeline(t)
	h := NewOnUnitCompletedHandler(gateway, nil, nil, UnitCompletedConfig{BadgePrefix: "capsule_"})

	e := shared.NewUnitCompletedEvent("z", "Zed")
	require.NoError(t, h.Handle(context.Background(), &e))

	state := gateway.State()
	assert.Equal(t, progress.XP(50), state.XP)
	assert.True(t, state.HasBadge("capsule_z"))
}

type otherEvent struct{ shared.BaseEvent }

func (otherEvent) Payload() map[string]interface{} { return nil }
