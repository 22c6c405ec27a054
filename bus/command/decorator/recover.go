package decorator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/code19m/errx"

	"github.com/x-research-team/dtx-commander/bus/command"
)

// Recover возвращает декоратор, превращающий панику в оставшейся цепочке в ошибку
// с трассировкой стека в деталях.
func Recover[C command.Command[R], R any](logger *slog.Logger) command.Decorator[C, R] {
	return command.DecoratorFunc[C, R](func(ctx context.Context, cmd C, next command.Next[C, R]) (result R, err error) {
		defer func() {
			if r := recover(); r != nil {
				var zero R
				result, err = zero, recovered(ctx, logger, command.TypeOf[C]().String(), r)
			}
		}()
		return next(ctx, cmd)
	})
}

// RecoverAll возвращает перехватчик с тем же поведением, что и Recover,
// для команд любого типа.
func RecoverAll(logger *slog.Logger) command.Interceptor {
	return command.InterceptorFunc(func(ctx context.Context, cmd any, next command.NextFunc) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result, err = nil, recovered(ctx, logger, fmt.Sprintf("%T", cmd), r)
			}
		}()
		return next(ctx, cmd)
	})
}

func recovered(ctx context.Context, logger *slog.Logger, commandType string, r any) error {
	stackTrace := make([]byte, 4096) // 4KB
	stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

	if logger != nil {
		logger.ErrorContext(ctx, "паника при выполнении команды",
			slog.String("command_type", commandType),
			slog.String("panic_value", fmt.Sprintf("%v", r)),
			slog.String("stack_trace", string(stackTrace)),
		)
	}

	return errx.New("паника при выполнении команды", errx.WithDetails(errx.D{
		"command_type": commandType,
		"panic_value":  fmt.Sprintf("%v", r),
		"stack_trace":  string(stackTrace),
	}))
}
