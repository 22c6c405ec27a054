package journal

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Storage определяет контракт для персистентного хранения журнала команд.
// Все операции должны быть потокобезопасными.
type Storage interface {
	// Save сохраняет запись журнала.
	Save(ctx context.Context, record *Record) error

	// List возвращает записи, удовлетворяющие фильтру, от новых к старым.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// Prune удаляет записи, начатые раньше before, и возвращает их количество.
	Prune(ctx context.Context, before time.Time) (int64, error)
}

var _ Storage = (*MemoryStorage)(nil)

// MemoryStorage - это реализация Storage в памяти процесса.
type MemoryStorage struct {
	records []*Record
	mu      sync.RWMutex
}

// NewMemoryStorage создает новое пустое хранилище.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Save реализует Storage.
func (s *MemoryStorage) Save(_ context.Context, record *Record) error {
	copied := *record

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, &copied)
	return nil
}

// List реализует Storage.
func (s *MemoryStorage) List(_ context.Context, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range slices.Backward(s.records) {
		if !filter.Match(r) {
			continue
		}
		copied := *r
		out = append(out, &copied)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Prune реализует Storage.
func (s *MemoryStorage) Prune(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.StartedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	clear(s.records[len(kept):])
	s.records = kept
	return removed, nil
}
