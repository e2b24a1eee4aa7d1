package progress

import (
	"sync"
	"testing"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_StartsEmpty(t *testing.T) {
	l := NewLedger()
	s := l.CurrentState()

	assert.Equal(t, XP(0), s.XP)
	assert.NotNil(t, s.Badges)
	assert.Empty(t, s.Badges)
	assert.Equal(t, Level(1), s.Level())
}

func TestLedger_ApplyXPDelta(t *testing.T) {
	l := NewLedger()

	prev, next := l.ApplyXPDelta(50)
	assert.Equal(t, XP(0), prev.XP)
	assert.Equal(t, XP(50), next.XP)

	prev, next = l.ApplyXPDelta(60)
	assert.Equal(t, XP(50), prev.XP)
	assert.Equal(t, XP(110), next.XP)
	assert.Equal(t, Level(2), next.Level())
}

func TestLedger_ApplyXPDelta_RejectsNonPositive(t *testing.T) {
	l := NewLedger()
	l.ApplyXPDelta(30)

	for _, amount := range []XP{0, -5} {
		prev, next := l.ApplyXPDelta(amount)
		assert.True(t, prev.Equal(next))
		assert.Equal(t, XP(30), next.XP)
	}
}

func TestLedger_ApplyXPDelta_RejectsOverflow(t *testing.T) {
	l := NewLedger()
	l.ApplyXPDelta(MaxXP - 10)

	prev, next := l.ApplyXPDelta(20)
	assert.True(t, prev.Equal(next))
	assert.Equal(t, MaxXP-10, next.XP)

	_, next = l.ApplyXPDelta(10)
	assert.Equal(t, MaxXP, next.XP)
	assert.True(t, next.XP.IsValid())

	prev, next = l.ApplyXPDelta(1)
	assert.True(t, prev.Equal(next))
	assert.Equal(t, MaxXP, l.CurrentState().XP)
}

func TestLedger_ApplyXPDelta_SumIsOrderIndependent(t *testing.T) {
	amounts := []XP{5, 17, 100, 3, 250, 1}

	forward := NewLedger()
	for _, a := range amounts {
		forward.ApplyXPDelta(a)
	}

	backward := NewLedger()
	for i := len(amounts) - 1; i >= 0; i-- {
		backward.ApplyXPDelta(amounts[i])
	}

	assert.Equal(t, XP(376), forward.CurrentState().XP)
	assert.Equal(t, forward.CurrentState().XP, backward.CurrentState().XP)
}

func TestLedger_ApplyBadgeGrant(t *testing.T) {
	l := NewLedger()

	s, granted := l.ApplyBadgeGrant(Badge{ID: "x", Title: "First"})
	require.True(t, granted)
	require.Len(t, s.Badges, 1)

	s, granted = l.ApplyBadgeGrant(Badge{ID: "y", Title: "Second"})
	require.True(t, granted)
	assert.Equal(t, []string{"y", "x"}, badgeIDs(s))

	s, granted = l.ApplyBadgeGrant(Badge{ID: "x", Title: "Different title, same id"})
	assert.False(t, granted)
	assert.Equal(t, []string{"y", "x"}, badgeIDs(s))
	assert.Equal(t, "First", s.Badges[1].Title)
}

func TestLedger_ApplyBadgeGrant_RejectsEmptyID(t *testing.T) {
	l := NewLedger()
	s, granted := l.ApplyBadgeGrant(Badge{Title: "No id"})
	assert.False(t, granted)
	assert.Empty(t, s.Badges)
}

func TestLedger_ResetState(t *testing.T) {
	l := NewLedger()
	l.ApplyXPDelta(500)
	l.ApplyBadgeGrant(Badge{ID: "x", Title: "First"})

	s := l.ResetState()
	assert.True(t, s.Equal(EmptyState()))
	assert.True(t, l.CurrentState().Equal(EmptyState()))
}

func TestLedger_CurrentStateIsACopy(t *testing.T) {
	l := NewLedger()
	l.ApplyBadgeGrant(Badge{ID: "x", Title: "First"})

	s := l.CurrentState()
	s.Badges[0].Title = "mutated"
	s.XP = 999

	assert.Equal(t, "First", l.CurrentState().Badges[0].Title)
	assert.Equal(t, XP(0), l.CurrentState().XP)
}

func TestLedger_Hydrate_Normalizes(t *testing.T) {
	l := NewLedger()
	s := l.Hydrate(State{
		XP: -10,
		Badges: []Badge{
			{ID: "a", Title: "A"},
			{ID: "", Title: "broken"},
			{ID: "a", Title: "A again"},
			{ID: "b", Title: "B"},
		},
	})

	assert.Equal(t, XP(0), s.XP)
	assert.Equal(t, []string{"a", "b"}, badgeIDs(s))
	assert.Equal(t, "A", s.Badges[0].Title)
}

func TestLedger_ConcurrentAwards(t *testing.T) {
	l := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.ApplyXPDelta(2)
			l.ApplyBadgeGrant(Badge{ID: "same", Title: "Same"})
		}()
	}
	wg.Wait()

	s := l.CurrentState()
	assert.Equal(t, XP(100), s.XP)
	assert.Len(t, s.Badges, 1)
}

func TestBadge_Validate(t *testing.T) {
	assert.NoError(t, Badge{ID: "x", Title: "T"}.Validate())
	assert.ErrorIs(t, Badge{Title: "T"}.Validate(), shared.ErrEmptyValue)
	assert.ErrorIs(t, Badge{ID: "x", Title: " "}.Validate(), shared.ErrEmptyValue)
	assert.True(t, Badge{ID: "x", Title: "A"}.SameAs(Badge{ID: "x", Title: "B"}))
}

func badgeIDs(s State) []string {
	ids := make([]string, 0, len(s.Badges))
	for _, b := range s.Badges {
		ids = append(ids, b.ID)
	}
	return ids
}
