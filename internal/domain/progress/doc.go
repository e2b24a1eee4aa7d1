// Package progress содержит доменную модель журнала прогресса: очки опыта (XP),
// уровни и бейджи.
//
// Пакет определяет:
//
//   - Value Objects: XP, Level, Badge
//   - Агрегат State: накопленный XP и упорядоченный набор бейджей
//   - Ledger: авторитетное состояние в памяти процесса
//   - Чистые функции DeriveLevel и DeriveLevelProgressPercent
//
// # Архитектурные принципы
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Ledger не знает о хранилище: сохранение выполняет слой application
//  3. Все мутации идемпотентны там, где это требуется (бейдж по ID)
//
// # Уровни
//
// Уровень вычисляется из XP с фиксированным шагом XPPerLevel = 100:
//
//	DeriveLevel(0)   == 1
//	DeriveLevel(99)  == 1
//	DeriveLevel(100) == 2
//
// Процент до следующего уровня:
//
//	DeriveLevelProgressPercent(150) == 50
//
// # Пример использования
//
//	ledger := NewLedger()
//	prev, next := ledger.ApplyXPDelta(60)
//	if DeriveLevel(next.XP) > DeriveLevel(prev.XP) {
//	    // level up
//	}
//
//	_, granted := ledger.ApplyBadgeGrant(Badge{ID: "module_cap1", Title: "Completed: Trees"})
//	// повторный вызов вернёт granted == false
package progress
