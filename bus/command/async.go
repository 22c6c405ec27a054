package command

import "context"

// Future - результат асинхронной отправки команды.
type Future[R any] struct {
	done   chan struct{}
	result R
	err    error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) resolve(result R, err error) {
	f.result, f.err = result, err
	close(f.done)
}

// Done возвращает канал, который закрывается по завершении команды.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Wait дожидается результата команды. Отмена ctx прекращает только ожидание,
// но не выполнение команды: для этого нужно отменить контекст SendAsync.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero R
		return settle(ctx, zero, ctx.Err())
	}
}

// SendAsync ставит команду в очередь пула диспетчера и сразу возвращает Future.
// Без WithWorkerPool команда выполняется в отдельной горутине.
// После Shutdown Future сразу завершается с ErrDispatcherClosed.
// Результат и ошибки совпадают с Send; если команда не попала в очередь
// из-за отмены ctx, Future завершается с *CancelledError.
func SendAsync[C Command[R], R any](ctx context.Context, d *Dispatcher, cmd C) *Future[R] {
	future := newFuture[R]()
	run := func() {
		future.resolve(Send[C, R](ctx, d, cmd))
	}

	if d.pool == nil {
		if d.closed.Load() {
			var zero R
			future.resolve(zero, ErrDispatcherClosed)
			return future
		}
		go run()
		return future
	}

	if err := d.pool.enqueue(ctx, run); err != nil {
		var zero R
		if isContextError(err) {
			future.resolve(settle(ctx, zero, err))
		} else {
			future.resolve(zero, err)
		}
	}
	return future
}
