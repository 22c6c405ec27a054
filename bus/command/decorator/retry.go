// Package decorator содержит готовые декораторы команд: повтор, ограничение
// времени, валидацию и перехват паник.
package decorator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/code19m/errx"

	"github.com/x-research-team/dtx-commander/bus/command"
)

const (
	defaultAttempts  = 3
	defaultDelay     = 100 * time.Millisecond
	defaultMaxJitter = 10 * time.Millisecond
)

// retryConfig содержит настройки декоратора повтора.
type retryConfig struct {
	attempts  uint
	delay     time.Duration
	maxJitter time.Duration
	retryIf   func(error) bool
	logger    *slog.Logger
}

// RetryOption определяет функциональную опцию декоратора повтора.
type RetryOption func(*retryConfig)

// WithAttempts задает общее количество попыток, включая первую. 0 игнорируется.
func WithAttempts(attempts uint) RetryOption {
	return func(c *retryConfig) {
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithDelay задает базовую задержку экспоненциальной паузы между попытками.
func WithDelay(delay time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.delay = delay
	}
}

// WithMaxJitter задает максимальную случайную добавку к задержке.
func WithMaxJitter(jitter time.Duration) RetryOption {
	return func(c *retryConfig) {
		c.maxJitter = jitter
	}
}

// WithRetryIf задает дополнительное условие повтора. Отмена и ошибки
// конфигурации не повторяются независимо от условия.
func WithRetryIf(retryIf func(error) bool) RetryOption {
	return func(c *retryConfig) {
		c.retryIf = retryIf
	}
}

// WithRetryLogger задает логгер для записи неудачных попыток.
func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(c *retryConfig) {
		c.logger = logger
	}
}

// Retry возвращает декоратор, который повторяет выполнение оставшейся цепочки
// с экспоненциальной паузой и случайной добавкой.
func Retry[C command.Command[R], R any](opts ...RetryOption) command.Decorator[C, R] {
	cfg := &retryConfig{
		attempts:  defaultAttempts,
		delay:     defaultDelay,
		maxJitter: defaultMaxJitter,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return command.DecoratorFunc[C, R](func(ctx context.Context, cmd C, next command.Next[C, R]) (R, error) {
		return retry.DoWithData(
			func() (R, error) {
				return next(ctx, cmd)
			},
			retry.Attempts(cfg.attempts),
			retry.Delay(cfg.delay),
			retry.MaxJitter(cfg.maxJitter),
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				return retryable(err) && (cfg.retryIf == nil || cfg.retryIf(err))
			}),
			retry.OnRetry(func(n uint, err error) {
				if cfg.logger == nil {
					return
				}
				cfg.logger.WarnContext(ctx, "повтор выполнения команды",
					slog.String("command_type", command.TypeOf[C]().String()),
					slog.Uint64("attempt", uint64(n+1)),
					slog.Uint64("max_attempts", uint64(cfg.attempts)),
					slog.Any("error", err),
				)
			}),
			retry.Context(ctx),
		)
	})
}

// retryable сообщает, имеет ли смысл повторять команду после ошибки.
func retryable(err error) bool {
	switch {
	case command.IsCancelled(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		command.IsConfigurationError(err):
		return false
	}
	return errx.GetType(err) != errx.T_Validation
}
