// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"fmt"

	"github.com/alem-hub/progress-ledger/internal/application/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON UNIT COMPLETED HANDLER
// Превращает событие завершения модуля в награды.
//
// Порядок важен:
// 1. Начисление XP - всегда, повторное завершение снова даёт XP
// 2. Выдача бейджа "module_<sourceID>" - только один раз
// 3. Короткая праздничная анимация
// Начисление идёт раньше бейджа, чтобы уведомление о новом уровне
// показывалось первым.
// ═══════════════════════════════════════════════════════════════════════════

// Rewarder - часть RewardGateway, нужная обработчику.
type Rewarder interface {
	AwardXP(ctx context.Context, amount progress.XP, reason string) reward.XPResult
	GrantBadge(ctx context.Context, badge progress.Badge) reward.BadgeResult
}

// Subscriber - шина, на которую регистрируется обработчик.
type Subscriber interface {
	Subscribe(handler shared.EventHandler) (func(), error)
}

// UnitCompletedConfig содержит конфигурацию обработчика.
type UnitCompletedConfig struct {
	// CompletionXP - XP за одно завершение.
	CompletionXP progress.XP

	// BadgePrefix - префикс ID бейджа, к нему добавляется sourceID.
	BadgePrefix string

	// XPReasonPrefix - префикс причины начисления, к нему добавляется title.
	XPReasonPrefix string

	// BadgeTitlePrefix - префикс названия бейджа.
	BadgeTitlePrefix string
}

// DefaultUnitCompletedConfig возвращает конфигурацию по умолчанию.
func DefaultUnitCompletedConfig() UnitCompletedConfig {
	return UnitCompletedConfig{
		CompletionXP:     50,
		BadgePrefix:      "module_",
		XPReasonPrefix:   "Completed ",
		BadgeTitlePrefix: "Completed: ",
	}
}

// OnUnitCompletedHandler обрабатывает shared.UnitCompletedEvent.
type OnUnitCompletedHandler struct {
	rewards     Rewarder
	celebration *Celebration
	logger      *logger.Logger
	config      UnitCompletedConfig
}

// NewOnUnitCompletedHandler создаёт обработчик. celebration может быть nil.
func NewOnUnitCompletedHandler(
	rewards Rewarder,
	celebration *Celebration,
	log *logger.Logger,
	config UnitCompletedConfig,
) *OnUnitCompletedHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.CompletionXP <= 0 {
		config.CompletionXP = DefaultUnitCompletedConfig().CompletionXP
	}

	return &OnUnitCompletedHandler{
		rewards:     rewards,
		celebration: celebration,
		logger:      log.With(logger.Component("on_unit_completed")),
		config:      config,
	}
}

// Register подписывает обработчик на шину.
func (h *OnUnitCompletedHandler) Register(bus Subscriber) (func(), error) {
	return bus.Subscribe(h.Handle)
}

// Handle обрабатывает одно событие.
func (h *OnUnitCompletedHandler) Handle(ctx context.Context, event shared.Event) error {
	var completed shared.UnitCompletedEvent
	switch e := event.(type) {
	case shared.UnitCompletedEvent:
		completed = e
	case *shared.UnitCompletedEvent:
		if e == nil {
			return shared.NewDomainError("eventhandler", "Handle", shared.ErrInvalidInput, "nil completion event")
		}
		completed = *e
	default:
		return shared.NewDomainError("eventhandler", "Handle", shared.ErrInvalidInput,
			fmt.Sprintf("unexpected event %T", event))
	}

	if completed.SourceID == "" {
		return shared.ErrEmptySourceID
	}

	// 1. XP
	xp := h.rewards.AwardXP(ctx, h.config.CompletionXP, h.config.XPReasonPrefix+completed.Title)

	// 2. Бейдж
	badge := progress.Badge{
		ID:    h.config.BadgePrefix + completed.SourceID,
		Title: h.config.BadgeTitlePrefix + completed.Title,
	}
	granted := h.rewards.GrantBadge(ctx, badge)

	h.logger.Info("unit completion rewarded",
		logger.SourceID(completed.SourceID),
		logger.EventID(completed.ID),
		logger.XPAmount(int64(h.config.CompletionXP)),
		logger.Bool("leveled_up", xp.LeveledUp),
		logger.Bool("badge_granted", granted.Granted),
	)

	// 3. Анимация
	if h.celebration != nil {
		h.celebration.Trigger()
	}

	return nil
}
