package decorator

import (
	"context"
	"time"

	"github.com/x-research-team/dtx-commander/bus/command"
)

// Timeout возвращает декоратор, ограничивающий время выполнения оставшейся цепочки.
// Истечение срока приводит к *command.CancelledError, который оборачивает
// context.DeadlineExceeded. Неположительное значение отключает ограничение.
func Timeout[C command.Command[R], R any](timeout time.Duration) command.Decorator[C, R] {
	return command.DecoratorFunc[C, R](func(ctx context.Context, cmd C, next command.Next[C, R]) (R, error) {
		if timeout <= 0 {
			return next(ctx, cmd)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return next(ctx, cmd)
	})
}
