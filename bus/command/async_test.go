package command_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x-research-team/dtx-commander/bus/command"
)

func TestSendAsync_WithoutPool(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](testCommandHandler)))
	dispatcher := newDispatcher(t, registry)

	future := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{Value: "async"})
	result, err := future.Wait(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "processed: async", result)
}

func TestSendAsync_WithPool(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	var calls atomic.Int32
	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
		func(ctx context.Context, cmd testCommand) (string, error) {
			calls.Add(1)
			time.Sleep(time.Millisecond) // имитация работы
			return testCommandHandler(ctx, cmd)
		},
	)))
	dispatcher := newDispatcher(t, registry, command.WithWorkerPool(4, 16))

	futures := make([]*command.Future[string], 20)
	for i := range futures {
		futures[i] = command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{Value: "pool"})
	}

	for _, future := range futures {
		result, err := future.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "processed: pool", result)
	}

	require.NoError(t, dispatcher.Shutdown(context.Background()))
	assert.Equal(t, int32(20), calls.Load())
}

func TestSendAsync_ErrorsMatchSend(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	handlerErr := errors.New("ошибка в обработчике")
	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
		func(ctx context.Context, cmd testCommand) (string, error) {
			return "", handlerErr
		},
	)))
	dispatcher := newDispatcher(t, registry, command.WithWorkerPool(1, 1))
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	_, err := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{}).Wait(context.Background())
	assert.Same(t, handlerErr, err)

	_, err = command.SendAsync[voidCommand, string](context.Background(), dispatcher, voidCommand{}).Wait(context.Background())
	assert.ErrorIs(t, err, command.ErrHandlerNotFound)
}

func TestSendAsync_AfterShutdown(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](testCommandHandler)))
	dispatcher := newDispatcher(t, registry, command.WithWorkerPool(2, 2))

	require.NoError(t, dispatcher.Shutdown(context.Background()))
	require.NoError(t, dispatcher.Shutdown(context.Background()), "повторная остановка не должна вызывать ошибку")

	_, err := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{}).Wait(context.Background())
	assert.ErrorIs(t, err, command.ErrDispatcherClosed)

	// Синхронная отправка продолжает работать.
	result, err := command.Send[testCommand, string](context.Background(), dispatcher, testCommand{Value: "sync"})
	require.NoError(t, err)
	assert.Equal(t, "processed: sync", result)
}

func TestSendAsync_AfterShutdownWithoutPool(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	var calls atomic.Int32
	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
		func(ctx context.Context, cmd testCommand) (string, error) {
			calls.Add(1)
			return testCommandHandler(ctx, cmd)
		},
	)))
	dispatcher := newDispatcher(t, registry)

	require.NoError(t, dispatcher.Shutdown(context.Background()))

	future := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{})
	select {
	case <-future.Done():
	default:
		t.Fatal("Future должен завершиться сразу после отказа")
	}
	_, err := future.Wait(context.Background())
	assert.ErrorIs(t, err, command.ErrDispatcherClosed)
	assert.Zero(t, calls.Load(), "Обработчик не должен вызываться после остановки")

	result, err := command.Send[testCommand, string](context.Background(), dispatcher, testCommand{Value: "sync"})
	require.NoError(t, err)
	assert.Equal(t, "processed: sync", result)
}

func TestShutdown_WhileEnqueueBlocked(t *testing.T) {
	t.Parallel()

	registry := command.NewRegistry()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
		func(ctx context.Context, cmd testCommand) (string, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return "ok", nil
		},
	)))
	dispatcher := newDispatcher(t, registry, command.WithWorkerPool(1, 0))

	// Первая команда занимает единственного воркера.
	busy := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{})
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("первая команда не начала выполняться")
	}

	// Вторая команда ждет места в очереди без срока.
	waiting := make(chan *command.Future[string], 1)
	go func() {
		waiting <- command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := dispatcher.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "Shutdown должен учитывать срок контекста")

	select {
	case future := <-waiting:
		_, err := future.Wait(context.Background())
		assert.ErrorIs(t, err, command.ErrDispatcherClosed)
	case <-time.After(time.Second):
		t.Fatal("ожидающая отправка должна быть отклонена после Shutdown")
	}

	// Принятая команда дорабатывает после освобождения.
	unblock()
	result, err := busy.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestSendAsync_Cancellation(t *testing.T) {
	t.Parallel()

	t.Run("отмена во время ожидания места в очереди", func(t *testing.T) {
		t.Parallel()

		registry := command.NewRegistry()
		release := make(chan struct{})
		require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
			func(ctx context.Context, cmd testCommand) (string, error) {
				<-release
				return "ok", nil
			},
		)))
		dispatcher := newDispatcher(t, registry, command.WithWorkerPool(1, 0))
		t.Cleanup(func() {
			close(release)
			_ = dispatcher.Shutdown(context.Background())
		})

		// Первая команда занимает единственного воркера.
		busy := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := command.SendAsync[testCommand, string](ctx, dispatcher, testCommand{}).Wait(context.Background())
		assert.True(t, command.IsCancelled(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		select {
		case <-busy.Done():
			t.Fatal("первая команда не должна завершиться до освобождения")
		default:
		}
	})

	t.Run("отмена ожидания результата", func(t *testing.T) {
		t.Parallel()

		registry := command.NewRegistry()
		release := make(chan struct{})
		require.NoError(t, command.RegisterHandler(registry, command.HandlerFunc[testCommand, string](
			func(ctx context.Context, cmd testCommand) (string, error) {
				<-release
				return "done", nil
			},
		)))
		dispatcher := newDispatcher(t, registry)

		future := command.SendAsync[testCommand, string](context.Background(), dispatcher, testCommand{})

		waitCtx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := future.Wait(waitCtx)
		assert.True(t, command.IsCancelled(err))

		// Команда продолжает выполняться и может быть дождана позже.
		close(release)
		result, err := future.Wait(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "done", result)
	})
}
