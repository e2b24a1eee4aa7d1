// Package notification содержит доменную модель уведомлений о наградах.
// Ядро определяет только вид уведомления и его данные; отображение
// (toast, алерт, строка в терминале) - забота внешнего слоя.
package notification

import (
	"fmt"
	"time"

	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет вид уведомления.
type Kind string

const (
	// KindLevelUp - уровень вырос после начисления XP.
	KindLevelUp Kind = "level_up"

	// KindXPAwarded - XP начислен без смены уровня.
	KindXPAwarded Kind = "xp_awarded"

	// KindBadgeEarned - получен новый бейдж.
	KindBadgeEarned Kind = "badge_earned"
)

// IsValid проверяет корректность вида уведомления.
func (k Kind) IsValid() bool {
	switch k {
	case KindLevelUp, KindXPAwarded, KindBadgeEarned:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление вида.
func (k Kind) String() string {
	return string(k)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - уведомление для пользователя.
// Заполняются только поля, относящиеся к Kind.
type Notification struct {
	// ID - уникальный идентификатор.
	ID string `json:"id"`

	// Kind - вид уведомления.
	Kind Kind `json:"kind"`

	// Level - новый уровень (KindLevelUp).
	Level progress.Level `json:"level,omitempty"`

	// Amount - начисленный XP (KindXPAwarded).
	Amount progress.XP `json:"amount,omitempty"`

	// Reason - необязательная причина начисления (KindXPAwarded).
	Reason string `json:"reason,omitempty"`

	// BadgeID и BadgeTitle - полученный бейдж (KindBadgeEarned).
	BadgeID    string `json:"badge_id,omitempty"`
	BadgeTitle string `json:"badge_title,omitempty"`

	// CreatedAt - время создания.
	CreatedAt time.Time `json:"created_at"`
}

// NewLevelUp создаёт уведомление о новом уровне.
func NewLevelUp(level progress.Level) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      KindLevelUp,
		Level:     level,
		CreatedAt: time.Now().UTC(),
	}
}

// NewXPAwarded создаёт уведомление о начислении XP.
func NewXPAwarded(amount progress.XP, reason string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      KindXPAwarded,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	}
}

// NewBadgeEarned создаёт уведомление о полученном бейдже.
func NewBadgeEarned(badge progress.Badge) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Kind:       KindBadgeEarned,
		BadgeID:    badge.ID,
		BadgeTitle: badge.Title,
		CreatedAt:  time.Now().UTC(),
	}
}

// Message возвращает короткий текст для toast-поверхности.
func (n Notification) Message() string {
	switch n.Kind {
	case KindLevelUp:
		return fmt.Sprintf("Level up! Now level %d", n.Level)
	case KindXPAwarded:
		if n.Reason != "" {
			return fmt.Sprintf("+%d XP: %s", n.Amount, n.Reason)
		}
		return fmt.Sprintf("+%d XP", n.Amount)
	case KindBadgeEarned:
		return fmt.Sprintf("Badge earned: %s", n.BadgeTitle)
	default:
		return ""
	}
}
