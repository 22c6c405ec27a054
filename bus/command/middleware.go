package command

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-reflect"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/x-research-team/dtx-commander/bus/command"
	instrumentationVersion = "0.1.0"
	metricKeyPrefix        = "messaging."
)

// loggingInterceptor реализует Interceptor для логирования выполнения команд.
type loggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor создает новый перехватчик для логирования.
// Если логгер не предоставлен (nil), возвращается nil.
func NewLoggingInterceptor(logger *slog.Logger) Interceptor {
	if logger == nil {
		return nil
	}
	return &loggingInterceptor{
		logger: logger,
	}
}

// Intercept логирует и выполняет команду.
func (i *loggingInterceptor) Intercept(ctx context.Context, cmd any, next NextFunc) (result any, err error) {
	cmdType, cmdID := DescribeCommand(cmd)
	i.logger.InfoContext(ctx, "отправка команды", slog.String("command_type", cmdType), slog.String("command_id", cmdID))

	startTime := time.Now()
	defer func() {
		duration := time.Since(startTime)
		switch {
		case err == nil:
			i.logger.DebugContext(ctx, "команда выполнена",
				slog.String("command_type", cmdType),
				slog.String("command_id", cmdID),
				slog.Duration("duration", duration),
			)
		case IsCancelled(err) || isContextError(err) || ctx.Err() != nil:
			i.logger.WarnContext(ctx, "выполнение команды отменено",
				slog.String("command_type", cmdType),
				slog.String("command_id", cmdID),
				slog.Any("error", err),
				slog.Duration("duration", duration),
			)
		default:
			i.logger.ErrorContext(ctx, "ошибка выполнения команды",
				slog.String("command_type", cmdType),
				slog.String("command_id", cmdID),
				slog.Any("error", err),
				slog.Duration("duration", duration),
			)
		}
	}()

	return next(ctx, cmd)
}

// metricsInterceptor реализует Interceptor для сбора метрик OpenTelemetry.
type metricsInterceptor struct {
	dispatchCounter     metric.Int64Counter
	processDurationHist metric.Float64Histogram
}

// NewMetricsInterceptor создает новый перехватчик для сбора метрик.
// Если провайдер не предоставлен (nil), возвращается nil.
func NewMetricsInterceptor(provider metric.MeterProvider) (Interceptor, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	dispatchCounter, err := meter.Int64Counter(
		metricKeyPrefix+"dispatch.count",
		metric.WithDescription("Количество отправленных команд"),
		metric.WithUnit("{commands}"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать счетчик dispatch.count: %w", err)
	}

	processDurationHist, err := meter.Float64Histogram(
		metricKeyPrefix+"process.duration",
		metric.WithDescription("Длительность обработки команды"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать гистограмму process.duration: %w", err)
	}

	return &metricsInterceptor{
		dispatchCounter:     dispatchCounter,
		processDurationHist: processDurationHist,
	}, nil
}

// Intercept собирает метрики и выполняет команду.
func (i *metricsInterceptor) Intercept(ctx context.Context, cmd any, next NextFunc) (result any, err error) {
	startTime := time.Now()
	result, err = next(ctx, cmd)
	duration := float64(time.Since(startTime).Microseconds()) / 1000

	status := "success"
	switch {
	case IsCancelled(err) || isContextError(err):
		status = "cancelled"
	case err != nil:
		status = "error"
	}
	cmdType, _ := DescribeCommand(cmd)

	attrs := metric.WithAttributes(
		attribute.String("command.type", cmdType),
		attribute.String("status", status),
	)
	i.dispatchCounter.Add(ctx, 1, attrs)
	i.processDurationHist.Record(ctx, duration, attrs)

	return result, err
}

// tracingInterceptor реализует Interceptor для распределенной трассировки OpenTelemetry.
type tracingInterceptor struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewTracingInterceptor создает новый перехватчик для трассировки.
// Если провайдер не предоставлен (nil), возвращается nil.
func NewTracingInterceptor(tp trace.TracerProvider, p propagation.TextMapPropagator) Interceptor {
	if tp == nil {
		return nil
	}

	if p == nil {
		p = propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	}

	return &tracingInterceptor{
		tracer: tp.Tracer(
			instrumentationName,
			trace.WithInstrumentationVersion(instrumentationVersion),
		),
		propagator: p,
	}
}

// Intercept создает спан для выполнения команды, продолжая трассу из метаданных команды.
func (i *tracingInterceptor) Intercept(ctx context.Context, cmd any, next NextFunc) (result any, err error) {
	if md, ok := cmd.(Metadatable); ok && !trace.SpanContextFromContext(ctx).IsValid() {
		ctx = i.propagator.Extract(ctx, propagation.MapCarrier(md.Metadata()))
	}

	cmdType, cmdID := DescribeCommand(cmd)
	spanName := fmt.Sprintf("%s process", cmdType)

	ctx, span := i.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("command.type", cmdType),
			attribute.String("command.id", cmdID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return next(ctx, cmd)
}

// DescribeCommand возвращает имя типа команды и значение ее поля ID.
// Если поля ID нет, вместо него возвращается "unknown".
func DescribeCommand(cmd any) (commandType, commandID string) {
	val := reflect.ValueOf(cmd)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return fmt.Sprintf("%T", cmd), "unknown"
		}
		val = val.Elem()
	}
	if !val.IsValid() {
		return "unknown", "unknown"
	}

	cmdType := val.Type().Name()
	if cmdType == "" {
		cmdType = val.Type().String()
	}
	cmdID := "unknown"

	if val.Kind() == reflect.Struct {
		if idField := val.FieldByName("ID"); idField.IsValid() && idField.CanInterface() {
			cmdID = fmt.Sprintf("%v", idField.Interface())
		}
	}

	return cmdType, cmdID
}
