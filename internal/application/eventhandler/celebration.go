package eventhandler

import (
	"sync"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// CELEBRATION
// Косметический эффект после завершения модуля: Idle -> Active -> Idle.
// Повторный запуск во время активного эффекта продлевает его.
// ═══════════════════════════════════════════════════════════════════════════

// DefaultCelebrationDuration - длительность эффекта по умолчанию.
const DefaultCelebrationDuration = time.Second

// Celebration хранит состояние праздничного эффекта.
type Celebration struct {
	mu       sync.Mutex
	duration time.Duration
	active   bool
	gen      uint64
	timer    *time.Timer
	onChange func(active bool)
}

// NewCelebration создаёт эффект. onChange вызывается при входе в Active и
// при возврате в Idle; может быть nil.
func NewCelebration(duration time.Duration, onChange func(active bool)) *Celebration {
	if duration <= 0 {
		duration = DefaultCelebrationDuration
	}
	return &Celebration{duration: duration, onChange: onChange}
}

// Trigger запускает или продлевает эффект.
func (c *Celebration) Trigger() {
	c.mu.Lock()
	started := !c.active
	c.active = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.duration, func() { c.finish(gen) })
	c.mu.Unlock()

	if started && c.onChange != nil {
		c.onChange(true)
	}
}

// Active сообщает, идёт ли эффект.
func (c *Celebration) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Stop немедленно завершает эффект.
func (c *Celebration) Stop() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.gen
	c.mu.Unlock()
	c.finish(gen)
}

// finish игнорирует таймеры, вытесненные более поздним Trigger.
func (c *Celebration) finish(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	wasActive := c.active
	c.active = false
	c.timer = nil
	c.mu.Unlock()

	if wasActive && c.onChange != nil {
		c.onChange(false)
	}
}
