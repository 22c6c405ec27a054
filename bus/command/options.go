package command

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// config содержит неэкспортируемую конфигурацию диспетчера.
type config struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	propagator     propagation.TextMapPropagator
	interceptors   []Interceptor
	workers        int
	queueSize      int
}

// Option определяет тип для функциональных опций, которые изменяют конфигурацию диспетчера.
type Option func(*config)

// WithLogger возвращает опцию, которая устанавливает логгер диспетчера.
// nil отключает логирование.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithTracerProvider возвращает опцию, которая устанавливает провайдер трассировки.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = provider
	}
}

// WithMeterProvider возвращает опцию, которая устанавливает провайдер метрик.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) {
		c.meterProvider = provider
	}
}

// WithPropagator возвращает опцию, которая устанавливает механизм распространения контекста.
func WithPropagator(propagator propagation.TextMapPropagator) Option {
	return func(c *config) {
		c.propagator = propagator
	}
}

// WithInterceptors возвращает опцию, которая добавляет перехватчики для всех команд.
// Они выполняются после встроенных и перед перехватчиками из Resolver,
// в порядке добавления.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(c *config) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// WithWorkerPool настраивает пул горутин для SendAsync.
func WithWorkerPool(workers, queueSize int) Option {
	return func(c *config) {
		c.workers = workers
		c.queueSize = queueSize
	}
}
