// Package presenter formats ledger data for terminal display.
// Presenters convert query DTOs and notifications into styled text;
// they never touch the ledger.
package presenter

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alem-hub/progress-ledger/internal/application/query"
	"github.com/alem-hub/progress-ledger/internal/domain/notification"
	"github.com/charmbracelet/lipgloss"
)

// ══════════════════════════════════════════════════════════════════════════════
// PALETTE
// ══════════════════════════════════════════════════════════════════════════════

var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorPrimary = lipgloss.Color("#20B9B4")
	colorGold    = lipgloss.Color("#F4D03F")
	colorMuted   = lipgloss.Color("#2C4A54")
)

// progressBarWidth - ширина полосы прогресса в символах.
const progressBarWidth = 20

// ══════════════════════════════════════════════════════════════════════════════
// PRESENTER
// ══════════════════════════════════════════════════════════════════════════════

// Presenter рендерит индикатор уровня и toast-уведомления.
type Presenter struct {
	out io.Writer

	title lipgloss.Style
	label lipgloss.Style
	muted lipgloss.Style
	gold  lipgloss.Style
	bar   lipgloss.Style
	box   lipgloss.Style
	toast lipgloss.Style
}

// New создаёт Presenter, пишущий в out. Цветовой профиль определяется по out,
// поэтому при выводе не в терминал стили деградируют до обычного текста.
func New(out io.Writer) *Presenter {
	r := lipgloss.NewRenderer(out)

	return &Presenter{
		out:   out,
		title: r.NewStyle().Bold(true).Foreground(colorAccent),
		label: r.NewStyle().Foreground(colorPrimary),
		muted: r.NewStyle().Foreground(colorMuted),
		gold:  r.NewStyle().Bold(true).Foreground(colorGold),
		bar:   r.NewStyle().Foreground(colorAccent),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1),
		toast: r.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(colorGold).
			PaddingLeft(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// LEVEL CARD
// ─────────────────────────────────────────────────────────────────────────────

// FormatLevel форматирует карточку уровня.
func (p *Presenter) FormatLevel(view query.LevelView) string {
	var sb strings.Builder

	sb.WriteString(p.title.Render(fmt.Sprintf("Level %d", view.Level)))
	sb.WriteString("\n")

	sb.WriteString(p.bar.Render(ProgressBar(view.ProgressPercent, progressBarWidth)))
	sb.WriteString(fmt.Sprintf(" %3d%%\n", view.ProgressPercent))

	sb.WriteString(p.label.Render("XP: "))
	sb.WriteString(formatNumber(int64(view.XP)))
	sb.WriteString(p.muted.Render(fmt.Sprintf("  (%d to level %d)", view.XPToNextLevel, view.Level+1)))
	sb.WriteString("\n")

	sb.WriteString(p.label.Render("Badges: "))
	sb.WriteString(fmt.Sprintf("%d", view.BadgeCount))

	for _, b := range view.RecentBadges {
		sb.WriteString("\n  ")
		sb.WriteString(p.gold.Render("★ " + b.Title))
	}

	return p.box.Render(sb.String())
}

// RenderLevel печатает карточку уровня. Подходит как callback для
// query.NewLevelIndicator.
func (p *Presenter) RenderLevel(view query.LevelView) {
	fmt.Fprintln(p.out, p.FormatLevel(view))
}

// ─────────────────────────────────────────────────────────────────────────────
// TOASTS
// ─────────────────────────────────────────────────────────────────────────────

// FormatToast форматирует одно уведомление.
func (p *Presenter) FormatToast(n notification.Notification) string {
	msg := n.Message()
	if n.Kind == notification.KindLevelUp || n.Kind == notification.KindBadgeEarned {
		msg = p.gold.Render(msg)
	}
	return p.toast.Render(msg)
}

// Deliver реализует notification.Sink: печатает toast в out.
func (p *Presenter) Deliver(_ context.Context, n notification.Notification) error {
	_, err := fmt.Fprintln(p.out, p.FormatToast(n))
	return err
}

// FormatCelebration возвращает строку праздничного эффекта.
func (p *Presenter) FormatCelebration() string {
	return p.gold.Render("✦ ✧ ✦  Module complete!  ✦ ✧ ✦")
}

// ─────────────────────────────────────────────────────────────────────────────
// HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// ProgressBar рисует полосу [████░░░░] для процента 0..100.
func ProgressBar(percent, width int) string {
	if width <= 0 {
		width = progressBarWidth
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := percent * width / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// formatNumber форматирует число с разделителями тысяч.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	var sb strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}
