package command

import (
	"fmt"

	"github.com/goccy/go-reflect"
)

// Capability определяет вид реализации, которую запрашивает диспетчер.
type Capability int

const (
	// CapabilityHandler - обработчик команды, ровно один на тип.
	CapabilityHandler Capability = iota + 1
	// CapabilityDecorator - типизированный декоратор конкретного типа команды.
	CapabilityDecorator
	// CapabilityInterceptor - декоратор, применяемый ко всем командам.
	CapabilityInterceptor
)

// String реализует fmt.Stringer.
func (c Capability) String() string {
	switch c {
	case CapabilityHandler:
		return "обработчик"
	case CapabilityDecorator:
		return "декоратор"
	case CapabilityInterceptor:
		return "перехватчик"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Resolver - внешний реестр реализаций, из которого диспетчер получает
// обработчики и декораторы. Диспетчер только читает из него.
type Resolver interface {
	// ResolveAll возвращает все реализации capability для типа команды
	// в стабильном порядке, совпадающем с порядком регистрации.
	// Пустой результат не является ошибкой.
	ResolveAll(capability Capability, commandType reflect.Type) ([]any, error)
}

// ResolveOne возвращает единственную реализацию capability для типа команды.
// Отсутствие реализации и наличие нескольких реализаций являются ошибками
// конфигурации; первая подходящая реализация никогда не выбирается молча.
func ResolveOne[T any](r Resolver, capability Capability, commandType reflect.Type) (T, error) {
	var zero T

	items, err := r.ResolveAll(capability, commandType)
	if err != nil {
		return zero, &ResolutionError{
			CommandType: typeName(commandType),
			Capability:  capability,
			Err:         resolutionFailure(capability),
			Cause:       err,
		}
	}

	switch len(items) {
	case 0:
		return zero, &ResolutionError{
			CommandType: typeName(commandType),
			Capability:  capability,
			Err:         ErrHandlerNotFound,
		}
	case 1:
	default:
		return zero, &ResolutionError{
			CommandType: typeName(commandType),
			Capability:  capability,
			Found:       len(items),
			Err:         ErrHandlerAmbiguous,
		}
	}

	typed, ok := items[0].(T)
	if !ok {
		return zero, &ResolutionError{
			CommandType: typeName(commandType),
			Capability:  capability,
			Found:       1,
			Err:         ErrHandlerMismatch,
			Cause:       fmt.Errorf("получен %T", items[0]),
		}
	}
	return typed, nil
}

// ResolveAll возвращает все реализации capability для типа команды, приведенные к T.
// Реализация чужого типа считается ошибкой разрешения декораторов.
func ResolveAll[T any](r Resolver, capability Capability, commandType reflect.Type) ([]T, error) {
	items, err := r.ResolveAll(capability, commandType)
	if err != nil {
		return nil, &ResolutionError{
			CommandType: typeName(commandType),
			Capability:  capability,
			Err:         resolutionFailure(capability),
			Cause:       err,
		}
	}

	typed := make([]T, 0, len(items))
	for i, item := range items {
		t, ok := item.(T)
		if !ok {
			return nil, &ResolutionError{
				CommandType: typeName(commandType),
				Capability:  capability,
				Found:       len(items),
				Err:         ErrDecoratorResolution,
				Cause:       fmt.Errorf("элемент %d имеет тип %T", i, item),
			}
		}
		typed = append(typed, t)
	}
	return typed, nil
}

// TypeOf возвращает идентичность типа команды C, по которой ведется поиск.
func TypeOf[C any]() reflect.Type {
	return reflect.TypeOf((*C)(nil)).Elem()
}

// resolutionFailure выбирает сигнальную ошибку для сбоя Resolver.
func resolutionFailure(capability Capability) error {
	if capability == CapabilityHandler {
		return ErrHandlerResolution
	}
	return ErrDecoratorResolution
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
