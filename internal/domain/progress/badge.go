package progress

import (
	"strings"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// Badge - именованная одноразовая награда. Неизменяема после создания,
// равенство определяется только по ID.
type Badge struct {
	// ID - стабильный идентификатор, уникальный в пределах журнала.
	ID string `json:"id"`

	// Title - отображаемое название.
	Title string `json:"title"`

	// Description - необязательное описание.
	Description string `json:"description,omitempty"`

	// Icon - необязательная иконка (emoji или имя ресурса).
	Icon string `json:"icon,omitempty"`
}

// Validate проверяет обязательные поля бейджа.
func (b Badge) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return shared.ErrEmptyBadgeID
	}
	if strings.TrimSpace(b.Title) == "" {
		return shared.ErrEmptyBadgeTitle
	}
	return nil
}

// SameAs сравнивает бейджи по ID.
func (b Badge) SameAs(other Badge) bool {
	return b.ID == other.ID
}
