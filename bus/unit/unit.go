// Package unit определяет тип Unit - значение, не несущее информации.
// Unit используется как тип результата команд, которые выполняют действие,
// но ничего не возвращают, благодаря чему конвейер диспетчеризации имеет
// единую форму: каждая команда возвращает какое-то значение.
package unit

import "fmt"

// Unit представляет отсутствие значимого результата.
// Все экземпляры Unit неразличимы между собой.
type Unit struct{}

// Default - каноническое значение Unit.
var Default = Unit{}

// Compare сравнивает два значения Unit. Всегда возвращает 0.
func (Unit) Compare(Unit) int {
	return 0
}

// CompareAny сравнивает Unit с произвольным значением.
// Для Unit и *Unit возвращает 0, для остальных типов - ошибку.
func (u Unit) CompareAny(other any) (int, error) {
	if !u.Equals(other) {
		return 0, fmt.Errorf("значение типа '%T' нельзя сравнить с unit.Unit", other)
	}
	return 0, nil
}

// Equal сообщает, равны ли два значения Unit. Всегда true.
func (Unit) Equal(Unit) bool {
	return true
}

// Equals сообщает, является ли other значением Unit.
// Структурно пустые значения других типов не считаются равными Unit.
func (Unit) Equals(other any) bool {
	switch v := other.(type) {
	case Unit:
		return true
	case *Unit:
		return v != nil
	default:
		return false
	}
}

// Hash возвращает хеш значения. Одинаков для всех экземпляров.
func (Unit) Hash() uint64 {
	return 0
}

// String реализует fmt.Stringer.
func (Unit) String() string {
	return "()"
}
