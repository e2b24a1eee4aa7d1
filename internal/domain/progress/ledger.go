package progress

import "sync"

// ══════════════════════════════════════════════════════════════════════════════
// STATE AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// State - единственный сохраняемый агрегат журнала.
type State struct {
	// XP - накопленный опыт, никогда не уменьшается (кроме Reset).
	XP XP `json:"xp"`

	// Badges - бейджи, уникальные по ID, последний полученный первым.
	Badges []Badge `json:"badges"`
}

// EmptyState возвращает начальное состояние журнала.
func EmptyState() State {
	return State{XP: 0, Badges: []Badge{}}
}

// Level возвращает уровень для текущего XP.
func (s State) Level() Level {
	return DeriveLevel(s.XP)
}

// LevelProgressPercent возвращает процент прогресса внутри уровня.
func (s State) LevelProgressPercent() int {
	return DeriveLevelProgressPercent(s.XP)
}

// HasBadge проверяет, получен ли бейдж с данным ID.
func (s State) HasBadge(id string) bool {
	for _, b := range s.Badges {
		if b.ID == id {
			return true
		}
	}
	return false
}

// Clone возвращает копию состояния, не разделяющую срез бейджей.
func (s State) Clone() State {
	badges := make([]Badge, len(s.Badges))
	copy(badges, s.Badges)
	return State{XP: s.XP, Badges: badges}
}

// Equal сравнивает два состояния: XP и порядок бейджей.
func (s State) Equal(other State) bool {
	if s.XP != other.XP || len(s.Badges) != len(other.Badges) {
		return false
	}
	for i := range s.Badges {
		if s.Badges[i] != other.Badges[i] {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Ledger хранит авторитетное состояние в памяти.
// Не обращается к хранилищу: сохранение компонует вызывающая сторона.
// Безопасен для конкурентного чтения; каждая мутация атомарна.
type Ledger struct {
	mu    sync.RWMutex
	state State
}

// NewLedger создаёт пустой журнал.
func NewLedger() *Ledger {
	return &Ledger{state: EmptyState()}
}

// Hydrate заменяет состояние загруженным снимком.
// Некорректные части нормализуются: отрицательный XP становится 0,
// бейджи без ID и дубликаты отбрасываются.
func (l *Ledger) Hydrate(s State) State {
	normalized := EmptyState()
	if s.XP > 0 {
		normalized.XP = s.XP
	}

	seen := make(map[string]struct{}, len(s.Badges))
	for _, b := range s.Badges {
		if b.ID == "" {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			continue
		}
		seen[b.ID] = struct{}{}
		normalized.Badges = append(normalized.Badges, b)
	}

	l.mu.Lock()
	l.state = normalized
	l.mu.Unlock()

	return normalized.Clone()
}

// CurrentState возвращает копию текущего состояния.
func (l *Ledger) CurrentState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Clone()
}

// ApplyXPDelta прибавляет amount к XP.
// При amount <= 0 или переполнении int64 ничего не меняется и prev == next.
func (l *Ledger) ApplyXPDelta(amount XP) (prev, next State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev = l.state.Clone()
	if amount <= 0 {
		return prev, prev.Clone()
	}

	sum, ok := l.state.XP.Add(amount)
	if !ok {
		return prev, prev.Clone()
	}
	l.state.XP = sum
	return prev, l.state.Clone()
}

// ApplyBadgeGrant добавляет бейдж в начало списка.
// Если бейдж с таким ID уже есть (или ID пустой), состояние не меняется
// и возвращается false.
func (l *Ledger) ApplyBadgeGrant(badge Badge) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if badge.ID == "" || l.state.HasBadge(badge.ID) {
		return l.state.Clone(), false
	}

	badges := make([]Badge, 0, len(l.state.Badges)+1)
	badges = append(badges, badge)
	badges = append(badges, l.state.Badges...)
	l.state.Badges = badges

	return l.state.Clone(), true
}

// ResetState возвращает журнал в пустое состояние.
func (l *Ledger) ResetState() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = EmptyState()
	return l.state.Clone()
}
