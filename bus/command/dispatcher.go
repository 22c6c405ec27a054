package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ISender определяет строго типизированный интерфейс отправки команды C.
type ISender[C Command[R], R any] interface {
	Send(ctx context.Context, cmd C) (R, error)
}

// Dispatcher находит обработчик и декораторы команды и выполняет цепочку.
// Между вызовами Send диспетчер не хранит состояния, поэтому его можно
// использовать из любого числа горутин.
type Dispatcher struct {
	resolver     Resolver
	cfg          *config
	interceptors []Interceptor
	pool         *workerPool
	closed       atomic.Bool
	closeOnce    sync.Once
}

// NewDispatcher создает новый, готовый к использованию экземпляр диспетчера.
func NewDispatcher(resolver Resolver, opts ...Option) (*Dispatcher, error) {
	if resolver == nil {
		return nil, errors.New("resolver не может быть nil")
	}

	cfg := &config{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	metricsInterceptor, err := NewMetricsInterceptor(cfg.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать перехватчик метрик: %w", err)
	}

	// Сначала встроенные перехватчики, затем пользовательские.
	candidates := []Interceptor{
		NewLoggingInterceptor(cfg.logger),
		NewTracingInterceptor(cfg.tracerProvider, cfg.propagator),
		metricsInterceptor,
	}
	candidates = append(candidates, cfg.interceptors...)

	interceptors := make([]Interceptor, 0, len(candidates))
	for _, i := range candidates {
		if i != nil {
			interceptors = append(interceptors, i)
		}
	}

	d := &Dispatcher{
		resolver:     resolver,
		cfg:          cfg,
		interceptors: interceptors,
	}
	if cfg.workers > 0 {
		d.pool = newWorkerPool(cfg.workers, cfg.queueSize)
		d.pool.run()
	}
	return d, nil
}

// Send находит обработчик команды C, строит цепочку декораторов и выполняет ее.
//
// Ошибки конфигурации (*ResolutionError) возвращаются до запуска какой-либо
// логики. Отмена ctx до или во время выполнения дает *CancelledError.
// Остальные ошибки цепочки возвращаются без изменений.
func Send[C Command[R], R any](ctx context.Context, d *Dispatcher, cmd C) (R, error) {
	var zero R

	chain, err := buildChain[C, R](d)
	if err != nil {
		if d.cfg.logger != nil {
			d.cfg.logger.ErrorContext(ctx, "ошибка разрешения обработчика команды",
				slog.String("command_type", typeName(TypeOf[C]())),
				slog.Any("error", err),
			)
		}
		return zero, err
	}

	if ctx.Err() != nil {
		return settle(ctx, zero, nil)
	}

	result, err := chain(ctx, cmd)
	return settle(ctx, result, err)
}

// For возвращает типизированный отправитель команд C, связанный с диспетчером.
func For[C Command[R], R any](d *Dispatcher) ISender[C, R] {
	return &sender[C, R]{dispatcher: d}
}

// sender представляет собой реализацию ISender.
type sender[C Command[R], R any] struct {
	dispatcher *Dispatcher
}

// Send отправляет команду через связанный диспетчер.
func (s *sender[C, R]) Send(ctx context.Context, cmd C) (R, error) {
	return Send[C, R](ctx, s.dispatcher, cmd)
}

// Shutdown корректно завершает работу диспетчера: новые асинхронные команды
// отклоняются с ErrDispatcherClosed, синхронный Send продолжает работать.
// С пулом воркеров Shutdown дожидается принятых команд, пока не отменен ctx.
// Без пула уже запущенные горутины не отслеживаются.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.pool != nil {
			err = d.pool.stop(ctx)
		}
	})
	return err
}

// buildChain разрешает обработчик, декораторы и перехватчики и собирает
// из них цепочку. Цепочка строится заново на каждый вызов.
func buildChain[C Command[R], R any](d *Dispatcher) (Next[C, R], error) {
	commandType := TypeOf[C]()

	handler, err := ResolveOne[Handler[C, R]](d.resolver, CapabilityHandler, commandType)
	if err != nil {
		return nil, err
	}

	decorators, err := ResolveAll[Decorator[C, R]](d.resolver, CapabilityDecorator, commandType)
	if err != nil {
		return nil, err
	}

	resolved, err := ResolveAll[Interceptor](d.resolver, CapabilityInterceptor, commandType)
	if err != nil {
		return nil, err
	}

	interceptors := make([]Interceptor, 0, len(d.interceptors)+len(resolved))
	interceptors = append(interceptors, d.interceptors...)
	interceptors = append(interceptors, resolved...)

	return intercept(decorate(handler, decorators), interceptors), nil
}

// decorate оборачивает обработчик декораторами. Проход идет с конца,
// чтобы decorators[0] оказался самым внешним.
func decorate[C Command[R], R any](handler Handler[C, R], decorators []Decorator[C, R]) Next[C, R] {
	next := Next[C, R](handler.Handle)
	for i := len(decorators) - 1; i >= 0; i-- {
		decorator, inner := decorators[i], next
		next = func(ctx context.Context, cmd C) (R, error) {
			return decorator.Handle(ctx, cmd, inner)
		}
	}
	return next
}

// intercept оборачивает типизированную цепочку перехватчиками.
// interceptors[0] становится самым внешним звеном.
func intercept[C Command[R], R any](next Next[C, R], interceptors []Interceptor) Next[C, R] {
	if len(interceptors) == 0 {
		return next
	}

	untyped := NextFunc(func(ctx context.Context, cmd any) (any, error) {
		typed, ok := cmd.(C)
		if !ok {
			return nil, fmt.Errorf("перехватчик передал команду типа %T вместо '%s'", cmd, typeName(TypeOf[C]()))
		}
		return next(ctx, typed)
	})

	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor, inner := interceptors[i], untyped
		untyped = func(ctx context.Context, cmd any) (any, error) {
			return interceptor.Intercept(ctx, cmd, inner)
		}
	}

	return func(ctx context.Context, cmd C) (R, error) {
		var zero R

		value, err := untyped(ctx, cmd)
		if value == nil {
			return zero, err
		}
		result, ok := value.(R)
		if !ok {
			return zero, errors.Join(
				fmt.Errorf("%w: получен %T для команды '%s'", ErrResultMismatch, value, typeName(TypeOf[C]())),
				err,
			)
		}
		return result, err
	}
}
