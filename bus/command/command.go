// Package command реализует внутрипроцессную шину команд: строго
// типизированные команды, единственный обработчик на тип команды и
// упорядоченную цепочку декораторов вокруг него.
//
// Диспетчер находит обработчик и декораторы через Resolver, строит цепочку
// заново на каждый вызов (первый зарегистрированный декоратор - самый
// внешний, обработчик - самый внутренний) и выполняет ее, передавая
// context.Context через все звенья.
package command

import (
	"context"

	"github.com/x-research-team/dtx-commander/bus/unit"
)

// Command представляет собой интерфейс-маркер для команды, параметризованный
// типом возвращаемого значения R.
// Команды, которые ничего не возвращают, объявляют R = unit.Unit.
type Command[R any] interface{}

// Handler - единственная реализация выполнения команды C.
type Handler[C Command[R], R any] interface {
	// Handle выполняет команду. При отмене ctx обработчик должен вернуть ошибку,
	// а не частичный результат.
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc является адаптером, позволяющим использовать обычные функции как Handler.
type HandlerFunc[C Command[R], R any] func(ctx context.Context, cmd C) (R, error)

// Handle реализует интерфейс Handler.
func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// VoidHandlerFunc адаптирует функцию без результата к Handler[C, unit.Unit].
type VoidHandlerFunc[C Command[unit.Unit]] func(ctx context.Context, cmd C) error

// Handle реализует интерфейс Handler.
func (f VoidHandlerFunc[C]) Handle(ctx context.Context, cmd C) (unit.Unit, error) {
	if err := f(ctx, cmd); err != nil {
		return unit.Default, err
	}
	return unit.Default, nil
}

// Next - следующее звено цепочки. Ссылка действительна только в рамках
// одного вызова и не должна сохраняться декоратором.
type Next[C Command[R], R any] func(ctx context.Context, cmd C) (R, error)

// Decorator оборачивает выполнение обработчика команды C сквозной логикой.
// Декоратор может вызвать next ноль или несколько раз, изменить результат
// или ошибку, либо вернуть собственный результат, не вызывая next.
type Decorator[C Command[R], R any] interface {
	Handle(ctx context.Context, cmd C, next Next[C, R]) (R, error)
}

// DecoratorFunc является адаптером, позволяющим использовать обычные функции как Decorator.
type DecoratorFunc[C Command[R], R any] func(ctx context.Context, cmd C, next Next[C, R]) (R, error)

// Handle реализует интерфейс Decorator.
func (f DecoratorFunc[C, R]) Handle(ctx context.Context, cmd C, next Next[C, R]) (R, error) {
	return f(ctx, cmd, next)
}

// NextFunc - нетипизированное звено цепочки, которое видят перехватчики.
type NextFunc func(ctx context.Context, cmd any) (any, error)

// Interceptor - декоратор, применяемый ко всем типам команд.
// Перехватчики работают с командой и результатом как с any и должны
// возвращать результат того же типа, что вернул next.
type Interceptor interface {
	Intercept(ctx context.Context, cmd any, next NextFunc) (any, error)
}

// InterceptorFunc является адаптером, позволяющим использовать обычные функции как Interceptor.
type InterceptorFunc func(ctx context.Context, cmd any, next NextFunc) (any, error)

// Intercept реализует интерфейс Interceptor.
func (f InterceptorFunc) Intercept(ctx context.Context, cmd any, next NextFunc) (any, error) {
	return f(ctx, cmd, next)
}

// Metadatable определяет интерфейс для команд, которые могут нести метаданные.
type Metadatable interface {
	Metadata() map[string]string
}
