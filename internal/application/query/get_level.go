// Package query contains read operations (CQRS - Queries).
package query

import (
	"sync"

	"github.com/alem-hub/progress-ledger/internal/application/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL INDICATOR
// Реактивное представление уровня: пересчитывается при каждом изменении
// журнала и ничего не изменяет сам.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecentBadges - сколько последних бейджей показывать.
const DefaultRecentBadges = 3

// StateSource - источник состояния с подпиской (RewardGateway).
type StateSource interface {
	State() progress.State
	Watch(fn reward.Watcher) (cancel func())
}

// LevelView - DTO для индикатора уровня.
type LevelView struct {
	// Level - текущий уровень (>= 1).
	Level progress.Level `json:"level"`

	// XP - накопленный опыт.
	XP progress.XP `json:"xp"`

	// BadgeCount - количество бейджей.
	BadgeCount int `json:"badge_count"`

	// ProgressPercent - прогресс внутри уровня, 0..100.
	ProgressPercent int `json:"progress_percent"`

	// XPToNextLevel - сколько XP до следующего уровня.
	XPToNextLevel progress.XP `json:"xp_to_next_level"`

	// RecentBadges - последние полученные бейджи, новые первыми.
	RecentBadges []progress.Badge `json:"recent_badges"`
}

// BuildLevelView строит представление из состояния.
func BuildLevelView(state progress.State, recent int) LevelView {
	if recent < 0 {
		recent = 0
	}
	if recent > len(state.Badges) {
		recent = len(state.Badges)
	}

	badges := make([]progress.Badge, recent)
	copy(badges, state.Badges[:recent])

	return LevelView{
		Level:           state.Level(),
		XP:              state.XP,
		BadgeCount:      len(state.Badges),
		ProgressPercent: state.LevelProgressPercent(),
		XPToNextLevel:   progress.XPToNextLevel(state.XP),
		RecentBadges:    badges,
	}
}

// LevelIndicator держит актуальный LevelView.
type LevelIndicator struct {
	mu     sync.RWMutex
	view   LevelView
	recent int
	render func(LevelView)
	cancel func()
}

// NewLevelIndicator подписывается на source. render вызывается сразу и после
// каждого изменения состояния; может быть nil.
func NewLevelIndicator(source StateSource, recent int, render func(LevelView)) *LevelIndicator {
	li := &LevelIndicator{
		recent: recent,
		render: render,
	}
	li.update(source.State())
	li.cancel = source.Watch(li.update)
	return li
}

// View возвращает текущее представление.
func (li *LevelIndicator) View() LevelView {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return li.view
}

// Close отписывает индикатор.
func (li *LevelIndicator) Close() {
	if li.cancel != nil {
		li.cancel()
	}
}

func (li *LevelIndicator) update(state progress.State) {
	view := BuildLevelView(state, li.recent)

	li.mu.Lock()
	li.view = view
	li.mu.Unlock()

	if li.render != nil {
		li.render(view)
	}
}
