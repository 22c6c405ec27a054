// Package postgres реализует хранилище журнала команд для PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/x-research-team/dtx-commander/bus/command/journal"
)

const (
	// SQL-запрос для создания таблицы журнала.
	// Индексы по времени начала для очистки и по типу команды для выборки.
	createTableQuery = `
CREATE TABLE IF NOT EXISTS command_journal (
    id UUID PRIMARY KEY,
    command_type VARCHAR(255) NOT NULL,
    command_id VARCHAR(255) NOT NULL,
    payload JSONB,
    metadata JSONB,
    status VARCHAR(50) NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    started_at TIMESTAMPTZ NOT NULL,
    duration_ns BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_command_journal_started_at ON command_journal (started_at);
CREATE INDEX IF NOT EXISTS idx_command_journal_type_status ON command_journal (command_type, status);
`

	// SQL-запрос для вставки новой записи.
	insertRecordQuery = `
INSERT INTO command_journal (id, command_type, command_id, payload, metadata, status, error, started_at, duration_ns)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

	// SQL-запрос для выборки записей. Пустые параметры фильтра отключают условие,
	// LIMIT NULL означает отсутствие ограничения.
	listRecordsQuery = `
SELECT id, command_type, command_id, payload, metadata, status, error, started_at, duration_ns
FROM command_journal
WHERE ($1::text = '' OR command_type = $1::text)
  AND ($2::text = '' OR status = $2::text)
ORDER BY started_at DESC
LIMIT $3;
`

	// SQL-запрос для удаления устаревших записей.
	pruneRecordsQuery = `
DELETE FROM command_journal
WHERE started_at < $1;
`
)

var _ journal.Storage = (*Storage)(nil)

// Storage представляет собой реализацию хранилища журнала для PostgreSQL.
type Storage struct {
	q Querier
}

// NewStorage создает новый экземпляр Storage.
// Он также выполняет миграцию, создавая необходимую таблицу, если она не существует.
func NewStorage(ctx context.Context, q Querier) (*Storage, error) {
	if q == nil {
		return nil, errors.New("querier не может быть nil")
	}
	if _, err := q.Exec(ctx, createTableQuery); err != nil {
		return nil, fmt.Errorf("не удалось создать таблицу command_journal: %w", err)
	}
	return &Storage{q: q}, nil
}

// Save сохраняет запись в журнал.
func (s *Storage) Save(ctx context.Context, record *journal.Record) error {
	var metadata []byte
	if record.Metadata != nil {
		var err error
		metadata, err = json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("не удалось сериализовать метаданные: %w", err)
		}
	}

	_, err := s.q.Exec(ctx, insertRecordQuery,
		record.ID,
		record.CommandType,
		record.CommandID,
		record.Payload,
		metadata,
		record.Status,
		record.Error,
		record.StartedAt,
		int64(record.Duration),
	)
	if err != nil {
		return fmt.Errorf("не удалось сохранить запись журнала: %w", err)
	}

	return nil
}

// List возвращает записи журнала, удовлетворяющие фильтру, от новых к старым.
func (s *Storage) List(ctx context.Context, filter journal.Filter) ([]*journal.Record, error) {
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	rows, err := s.q.Query(ctx, listRecordsQuery, filter.CommandType, filter.Status, limit)
	if err != nil {
		return nil, fmt.Errorf("не удалось извлечь записи журнала: %w", err)
	}
	defer rows.Close()

	records := make([]*journal.Record, 0)
	for rows.Next() {
		var (
			record   journal.Record
			metadata []byte
			duration int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.CommandType,
			&record.CommandID,
			&record.Payload,
			&metadata,
			&record.Status,
			&record.Error,
			&record.StartedAt,
			&duration,
		); err != nil {
			return nil, fmt.Errorf("не удалось сканировать запись журнала: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
				return nil, fmt.Errorf("не удалось десериализовать метаданные: %w", err)
			}
		}
		record.Duration = time.Duration(duration)
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по записям журнала: %w", err)
	}

	return records, nil
}

// Prune удаляет записи, начатые раньше before.
func (s *Storage) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, pruneRecordsQuery, before)
	if err != nil {
		return 0, fmt.Errorf("не удалось удалить устаревшие записи журнала: %w", err)
	}
	return tag.RowsAffected(), nil
}
