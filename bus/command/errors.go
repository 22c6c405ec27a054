package command

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrHandlerNotFound возвращается, если для типа команды не зарегистрирован обработчик.
	ErrHandlerNotFound = errors.New("обработчик не найден")

	// ErrHandlerAmbiguous возвращается, если для типа команды зарегистрировано более одного обработчика.
	ErrHandlerAmbiguous = errors.New("обработчик неоднозначен")

	// ErrHandlerMismatch возвращается, если зарегистрированный обработчик не
	// соответствует запрошенному типу результата.
	ErrHandlerMismatch = errors.New("обработчик не соответствует типу команды")

	// ErrHandlerResolution возвращается, если Resolver не смог выполнить поиск обработчика.
	ErrHandlerResolution = errors.New("ошибка разрешения обработчика")

	// ErrDecoratorResolution возвращается, если декораторы или перехватчики не удалось разрешить.
	ErrDecoratorResolution = errors.New("ошибка разрешения декораторов")

	// ErrCancelled сигнализирует, что выполнение команды было отменено.
	ErrCancelled = errors.New("выполнение команды отменено")

	// ErrResultMismatch возвращается, если перехватчик вернул результат чужого типа.
	ErrResultMismatch = errors.New("результат не соответствует типу команды")

	// ErrDispatcherClosed возвращается при асинхронной отправке после Shutdown.
	ErrDispatcherClosed = errors.New("диспетчер остановлен")
)

// ResolutionError описывает ошибку конфигурации, обнаруженную до запуска
// какой-либо логики обработчика.
type ResolutionError struct {
	CommandType string
	Capability  Capability
	// Found - количество найденных реализаций.
	Found int
	// Err - одна из сигнальных ошибок: ErrHandlerNotFound, ErrHandlerAmbiguous,
	// ErrHandlerMismatch, ErrHandlerResolution или ErrDecoratorResolution.
	Err error
	// Cause - исходная ошибка Resolver, если она была.
	Cause error
}

func (e *ResolutionError) Error() string {
	switch {
	case errors.Is(e.Err, ErrHandlerNotFound):
		return fmt.Sprintf("обработчик для команды '%s' не найден", e.CommandType)
	case errors.Is(e.Err, ErrHandlerAmbiguous):
		return fmt.Sprintf("для команды '%s' зарегистрировано обработчиков: %d, ожидался ровно один", e.CommandType, e.Found)
	case errors.Is(e.Err, ErrHandlerMismatch):
		return fmt.Sprintf("обработчик для команды '%s' имеет другой тип результата", e.CommandType)
	}
	if e.Cause != nil {
		return fmt.Sprintf("не удалось разрешить %s для команды '%s': %v", e.Capability, e.CommandType, e.Cause)
	}
	return fmt.Sprintf("не удалось разрешить %s для команды '%s'", e.Capability, e.CommandType)
}

func (e *ResolutionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// CancelledError означает, что команда не завершилась из-за отмены.
// errors.Is(err, ErrCancelled) истинно, при этом исходные ошибки
// (context.Canceled, context.DeadlineExceeded, ошибка обработчика)
// остаются доступными через errors.Is и errors.As.
type CancelledError struct {
	// Cause - причина отмены контекста.
	Cause error
	// Err - ошибка, которую вернула цепочка, если она была.
	Err error
}

func (e *CancelledError) Error() string {
	switch {
	case e.Err != nil && e.Cause != nil && !errors.Is(e.Err, e.Cause):
		return fmt.Sprintf("%s: %v: %v", ErrCancelled, e.Cause, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", ErrCancelled, e.Err)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", ErrCancelled, e.Cause)
	}
	return ErrCancelled.Error()
}

// Is сопоставляет ошибку с ErrCancelled.
func (e *CancelledError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelledError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsConfigurationError сообщает, является ли err ошибкой разрешения
// (отсутствующий, неоднозначный или неподходящий обработчик, ошибка декораторов).
func IsConfigurationError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

// IsCancelled сообщает, была ли команда отменена.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// isContextError сообщает, вызвана ли ошибка отменой или истечением срока контекста.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// settle приводит результат цепочки к итоговому виду: отмена превращается в
// CancelledError, остальные ошибки и результаты передаются без изменений.
func settle[R any](ctx context.Context, result R, err error) (R, error) {
	var zero R

	if ctx.Err() == nil && (err == nil || !isContextError(err)) {
		return result, err
	}
	if IsCancelled(err) {
		return zero, err
	}

	cause := context.Cause(ctx)
	if cause == nil {
		// Контекст вызывающей стороны жив, отменился производный контекст внутри цепочки.
		return zero, &CancelledError{Err: err}
	}
	return zero, &CancelledError{Cause: cause, Err: err}
}
