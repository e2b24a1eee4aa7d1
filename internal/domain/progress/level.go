package progress

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// XP представляет очки опыта. Искусственной верхней границы нет, но сумма
// не может выйти за пределы int64.
type XP int64

// MaxXP - наибольшее представимое значение XP.
const MaxXP XP = math.MaxInt64

// IsValid проверяет, что XP неотрицательный.
func (x XP) IsValid() bool {
	return x >= 0
}

// Add складывает XP. ok == false, если сумма переполнила бы int64;
// тогда возвращается x без изменений.
func (x XP) Add(delta XP) (sum XP, ok bool) {
	if delta > 0 && x > MaxXP-delta {
		return x, false
	}
	return x + delta, true
}

// Level представляет уровень, вычисляемый из XP. Всегда >= 1.
type Level int64

// XPPerLevel - количество XP на один уровень.
const XPPerLevel XP = 100

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED VALUES
// ══════════════════════════════════════════════════════════════════════════════

// DeriveLevel вычисляет уровень: floor(xp / XPPerLevel) + 1.
// Отрицательный XP трактуется как 0.
func DeriveLevel(xp XP) Level {
	if xp < 0 {
		xp = 0
	}
	return Level(xp/XPPerLevel) + 1
}

// DeriveLevelProgressPercent возвращает процент прогресса внутри текущего уровня:
// clamp(round((xp mod XPPerLevel) / XPPerLevel * 100), 0, 100).
func DeriveLevelProgressPercent(xp XP) int {
	if xp < 0 {
		xp = 0
	}
	within := float64(xp % XPPerLevel)
	percent := int(math.Round(within / float64(XPPerLevel) * 100))

	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// XPToNextLevel возвращает, сколько XP осталось до следующего уровня.
func XPToNextLevel(xp XP) XP {
	if xp < 0 {
		xp = 0
	}
	return XPPerLevel - xp%XPPerLevel
}
