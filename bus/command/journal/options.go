package journal

import (
	"log/slog"
	"time"
)

// Option определяет функцию для конфигурации Interceptor.
type Option func(*Interceptor)

// WithLogger устанавливает логгер для ошибок журнала.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Interceptor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithPayload включает или отключает сохранение тела команды.
// По умолчанию тело сохраняется.
func WithPayload(enabled bool) Option {
	return func(i *Interceptor) {
		i.payload = enabled
	}
}

// PrunerOption определяет функцию для конфигурации Pruner.
type PrunerOption func(*Pruner)

// WithInterval устанавливает интервал очистки хранилища.
func WithInterval(interval time.Duration) PrunerOption {
	return func(p *Pruner) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithRetention устанавливает время хранения записей.
func WithRetention(retention time.Duration) PrunerOption {
	return func(p *Pruner) {
		if retention > 0 {
			p.retention = retention
		}
	}
}

// WithPrunerLogger устанавливает логгер.
func WithPrunerLogger(logger *slog.Logger) PrunerOption {
	return func(p *Pruner) {
		if logger != nil {
			p.logger = logger
		}
	}
}
