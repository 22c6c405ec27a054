// Package idempotency содержит декоратор, который возвращает сохраненный
// результат для повторно отправленной команды с тем же ключом идемпотентности.
package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/x-research-team/dtx-commander/bus/command"
)

const defaultTTL = 24 * time.Hour

// Keyed определяет интерфейс для команд с ключом идемпотентности.
// Пустой ключ отключает проверку для конкретной команды.
type Keyed interface {
	IdempotencyKey() string
}

// Store определяет хранилище результатов выполненных команд.
// Все операции должны быть потокобезопасными.
type Store interface {
	// Get возвращает сохраненный результат. found=false означает, что ключ не найден
	// или срок его хранения истек.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set сохраняет результат на время ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// config содержит настройки декоратора.
type config struct {
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// Option определяет функциональную опцию декоратора идемпотентности.
type Option func(*config)

// WithTTL задает время хранения результата.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix задает префикс ключей в хранилище.
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithLogger задает логгер для ошибок записи в хранилище.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// NewDecorator возвращает декоратор, который не вызывает оставшуюся цепочку,
// если результат команды с тем же ключом уже сохранен.
//
// Сохраняются только успешные результаты. Ошибка чтения из хранилища
// прерывает выполнение, ошибка записи только логируется.
func NewDecorator[C command.Command[R], R any](store Store, opts ...Option) command.Decorator[C, R] {
	cfg := &config{
		ttl:    defaultTTL,
		prefix: "idempotency:",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return command.DecoratorFunc[C, R](func(ctx context.Context, cmd C, next command.Next[C, R]) (R, error) {
		var zero R

		keyed, ok := any(cmd).(Keyed)
		if !ok || keyed.IdempotencyKey() == "" {
			return next(ctx, cmd)
		}
		key := cfg.prefix + command.TypeOf[C]().String() + ":" + keyed.IdempotencyKey()

		stored, found, err := store.Get(ctx, key)
		if err != nil {
			return zero, fmt.Errorf("не удалось прочитать результат команды по ключу '%s': %w", key, err)
		}
		if found {
			var result R
			if err := json.Unmarshal(stored, &result); err != nil {
				return zero, fmt.Errorf("не удалось десериализовать результат команды по ключу '%s': %w", key, err)
			}
			return result, nil
		}

		result, err := next(ctx, cmd)
		if err != nil {
			return result, err
		}

		encoded, err := json.Marshal(result)
		if err == nil {
			err = store.Set(ctx, key, encoded, cfg.ttl)
		}
		if err != nil && cfg.logger != nil {
			cfg.logger.WarnContext(ctx, "не удалось сохранить результат команды",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
		return result, nil
	})
}
