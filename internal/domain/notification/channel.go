package notification

import (
	"context"
	"errors"
)

// ══════════════════════════════════════════════════════════════════════════════
// SINK
// ══════════════════════════════════════════════════════════════════════════════

// Sink доставляет уведомления на внешнюю поверхность (toast, лог, терминал).
// Ошибка доставки не влияет на состояние журнала.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc позволяет использовать функцию как Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver реализует Sink.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// FanOut рассылает уведомление во все вложенные Sink по порядку.
// Сбой одного получателя не останавливает остальных.
type FanOut []Sink

// Deliver реализует Sink.
func (f FanOut) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard - Sink, который ничего не делает.
var Discard Sink = SinkFunc(func(context.Context, Notification) error { return nil })
