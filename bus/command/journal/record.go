package journal

import (
	"time"

	"github.com/google/uuid"
)

const (
	// StatusSucceeded означает, что команда выполнена успешно.
	StatusSucceeded = "SUCCEEDED"
	// StatusFailed означает, что команда завершилась ошибкой.
	StatusFailed = "FAILED"
	// StatusCancelled означает, что выполнение команды было отменено.
	StatusCancelled = "CANCELLED"
)

// Record представляет запись журнала о выполненной команде.
type Record struct {
	ID          uuid.UUID         // Уникальный идентификатор записи
	CommandType string            // Тип команды
	CommandID   string            // Значение поля ID команды, если оно есть
	Payload     []byte            // Сериализованное тело команды
	Metadata    map[string]string // Метаданные (для трассировки и т.д.)
	Status      string            // Статус (SUCCEEDED, FAILED, CANCELLED)
	Error       string            // Текст ошибки для неуспешных команд
	StartedAt   time.Time         // Время начала выполнения
	Duration    time.Duration     // Длительность выполнения
}

// Filter задает условия выборки записей журнала.
type Filter struct {
	CommandType string // Пустое значение - любой тип
	Status      string // Пустое значение - любой статус
	Limit       int    // Неположительное значение - без ограничения
}

// Match сообщает, удовлетворяет ли запись фильтру. Limit не учитывается.
func (f Filter) Match(r *Record) bool {
	return (f.CommandType == "" || f.CommandType == r.CommandType) &&
		(f.Status == "" || f.Status == r.Status)
}
