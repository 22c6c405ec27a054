package command

import (
	"errors"
	"fmt"
	"sync"

	"github.com/goccy/go-reflect"
)

// registration содержит все реализации, зарегистрированные для одного типа команды.
type registration struct {
	handlers   []any
	decorators []any
}

// Registry - это потокобезопасный реестр обработчиков, декораторов и перехватчиков.
// Реализует Resolver и сохраняет порядок регистрации.
// Повторная регистрация обработчика не отклоняется: неоднозначность
// обнаруживается при разрешении.
type Registry struct {
	entries      map[reflect.Type]*registration
	interceptors []any
	mu           sync.RWMutex
}

// NewRegistry создает новый пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[reflect.Type]*registration),
	}
}

// RegisterHandler регистрирует обработчик для типа команды C.
func RegisterHandler[C Command[R], R any](r *Registry, handler Handler[C, R]) error {
	if handler == nil {
		return fmt.Errorf("обработчик для команды '%s' не может быть nil", TypeOf[C]())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entry(TypeOf[C]())
	entry.handlers = append(entry.handlers, handler)
	return nil
}

// RegisterDecorator добавляет декоратор для типа команды C в конец цепочки.
// Первый зарегистрированный декоратор становится самым внешним.
func RegisterDecorator[C Command[R], R any](r *Registry, decorator Decorator[C, R]) error {
	if decorator == nil {
		return fmt.Errorf("декоратор для команды '%s' не может быть nil", TypeOf[C]())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entry(TypeOf[C]())
	entry.decorators = append(entry.decorators, decorator)
	return nil
}

// RegisterInterceptor добавляет перехватчик, применяемый ко всем командам.
func (r *Registry) RegisterInterceptor(interceptor Interceptor) error {
	if interceptor == nil {
		return errors.New("перехватчик не может быть nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.interceptors = append(r.interceptors, interceptor)
	return nil
}

// ResolveAll реализует Resolver. Возвращает копию, чтобы вызывающая сторона
// не зависела от последующих регистраций.
func (r *Registry) ResolveAll(capability Capability, commandType reflect.Type) ([]any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var items []any
	switch capability {
	case CapabilityInterceptor:
		items = r.interceptors
	case CapabilityHandler:
		if entry, ok := r.entries[commandType]; ok {
			items = entry.handlers
		}
	case CapabilityDecorator:
		if entry, ok := r.entries[commandType]; ok {
			items = entry.decorators
		}
	default:
		return nil, fmt.Errorf("неизвестный вид реализации: %s", capability)
	}

	out := make([]any, len(items))
	copy(out, items)
	return out, nil
}

// entry возвращает запись для типа команды, создавая ее при необходимости.
// Вызывается под блокировкой на запись.
func (r *Registry) entry(commandType reflect.Type) *registration {
	entry, ok := r.entries[commandType]
	if !ok {
		entry = &registration{}
		r.entries[commandType] = entry
	}
	return entry
}
