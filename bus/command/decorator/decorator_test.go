package decorator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-commander/bus/command"
	"github.com/x-research-team/dtx-commander/bus/command/decorator"
)

type transferCommand struct {
	ID     string `json:"id"`
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required,nefield=From"`
	Amount int64  `json:"amount" validate:"gt=0"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// send собирает диспетчер с одним обработчиком и набором декораторов и отправляет команду.
func send(
	t *testing.T,
	ctx context.Context,
	handler command.HandlerFunc[transferCommand, string],
	cmd transferCommand,
	decorators ...command.Decorator[transferCommand, string],
) (string, error) {
	t.Helper()

	registry := command.NewRegistry()
	require.NoError(t, command.RegisterHandler(registry, handler))
	for _, d := range decorators {
		require.NoError(t, command.RegisterDecorator(registry, d))
	}

	dispatcher, err := command.NewDispatcher(registry, command.WithLogger(discardLogger()))
	require.NoError(t, err)

	return command.Send[transferCommand, string](ctx, dispatcher, cmd)
}

var validTransfer = transferCommand{ID: "t-1", From: "a", To: "b", Amount: 10}

func TestRetry(t *testing.T) {
	t.Parallel()

	fast := []decorator.RetryOption{
		decorator.WithAttempts(3),
		decorator.WithDelay(time.Millisecond),
		decorator.WithMaxJitter(time.Millisecond),
		decorator.WithRetryLogger(discardLogger()),
	}

	t.Run("успех после временных ошибок", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		result, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			if calls.Add(1) < 3 {
				return "", errors.New("временная ошибка")
			}
			return "done", nil
		}, validTransfer, decorator.Retry[transferCommand, string](fast...))

		require.NoError(t, err)
		assert.Equal(t, "done", result)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("исчерпание попыток", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		handlerErr := errors.New("постоянная ошибка")
		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			calls.Add(1)
			return "", handlerErr
		}, validTransfer, decorator.Retry[transferCommand, string](fast...))

		require.Error(t, err)
		assert.ErrorIs(t, err, handlerErr)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("отмена не повторяется", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			calls.Add(1)
			return "", context.Canceled
		}, validTransfer, decorator.Retry[transferCommand, string](fast...))

		require.Error(t, err)
		assert.True(t, command.IsCancelled(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("ошибка валидации не повторяется", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			calls.Add(1)
			return "ok", nil
		}, transferCommand{},
			decorator.Retry[transferCommand, string](fast...),
			decorator.Validate[transferCommand, string](nil),
		)

		require.Error(t, err)
		assert.Equal(t, errx.T_Validation, errx.GetType(err))
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("пользовательское условие", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		permanent := errors.New("не повторять")
		opts := append([]decorator.RetryOption{
			decorator.WithRetryIf(func(err error) bool { return !errors.Is(err, permanent) }),
		}, fast...)

		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			calls.Add(1)
			return "", permanent
		}, validTransfer, decorator.Retry[transferCommand, string](opts...))

		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("истечение срока", func(t *testing.T) {
		t.Parallel()

		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}, validTransfer, decorator.Timeout[transferCommand, string](10*time.Millisecond))

		require.Error(t, err)
		assert.True(t, command.IsCancelled(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("успех в пределах срока", func(t *testing.T) {
		t.Parallel()

		result, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "Обработчик должен получить контекст со сроком")
			return "ok", nil
		}, validTransfer, decorator.Timeout[transferCommand, string](time.Second))

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})

	t.Run("нулевой срок отключает ограничение", func(t *testing.T) {
		t.Parallel()

		result, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			_, ok := ctx.Deadline()
			assert.False(t, ok)
			return "ok", nil
		}, validTransfer, decorator.Timeout[transferCommand, string](0))

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("корректная команда", func(t *testing.T) {
		t.Parallel()

		result, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			return "ok", nil
		}, validTransfer, decorator.Validate[transferCommand, string](nil))

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
	})

	t.Run("ошибки полей", func(t *testing.T) {
		t.Parallel()

		var called atomic.Bool
		_, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			called.Store(true)
			return "ok", nil
		}, transferCommand{From: "a", To: "a"}, decorator.Validate[transferCommand, string](nil))

		require.Error(t, err)
		assert.False(t, called.Load(), "Обработчик не должен вызываться для некорректной команды")

		e := errx.AsErrorX(err)
		assert.Equal(t, errx.T_Validation, e.Type())
		assert.Equal(t, decorator.CodeValidationFailed, e.Code())

		fields := e.Fields()
		assert.Contains(t, fields, "to")
		assert.Contains(t, fields, "amount")
		assert.NotContains(t, fields, "from")
	})

	t.Run("команда не структура", func(t *testing.T) {
		t.Parallel()

		registry := command.NewRegistry()
		require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[string, int](
			func(ctx context.Context, cmd string) (int, error) {
				return len(cmd), nil
			},
		)))
		require.NoError(t, command.RegisterDecorator(registry, decorator.Validate[string, int](nil)))

		dispatcher, err := command.NewDispatcher(registry, command.WithLogger(discardLogger()))
		require.NoError(t, err)

		result, err := command.Send[string, int](context.Background(), dispatcher, "abc")
		require.NoError(t, err)
		assert.Equal(t, 3, result)
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	t.Run("типизированный декоратор", func(t *testing.T) {
		t.Parallel()

		result, err := send(t, context.Background(), func(ctx context.Context, cmd transferCommand) (string, error) {
			panic("boom")
		}, validTransfer, decorator.Recover[transferCommand, string](discardLogger()))

		require.Error(t, err)
		assert.Empty(t, result)
		details := errx.AsErrorX(err).Details()
		assert.Equal(t, "boom", details["panic_value"])
		assert.NotEmpty(t, details["stack_trace"])
	})

	t.Run("перехватчик для всех команд", func(t *testing.T) {
		t.Parallel()

		registry := command.NewRegistry()
		require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[transferCommand, string](
			func(ctx context.Context, cmd transferCommand) (string, error) {
				panic(errors.New("boom"))
			},
		)))
		require.NoError(t, registry.RegisterInterceptor(decorator.RecoverAll(nil)))

		dispatcher, err := command.NewDispatcher(registry, command.WithLogger(discardLogger()))
		require.NoError(t, err)

		_, err = command.Send[transferCommand, string](context.Background(), dispatcher, validTransfer)
		require.Error(t, err)
		assert.Equal(t, "boom", errx.AsErrorX(err).Details()["panic_value"])
	})
}
