// Package redis реализует хранилище идемпотентности поверх Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/x-research-team/dtx-commander/bus/command/idempotency"
)

// Client определяет команды Redis, которые использует хранилище.
// Ему удовлетворяют *redis.Client, *redis.ClusterClient и redis.UniversalClient.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var _ idempotency.Store = (*Store)(nil)

// Store представляет собой реализацию idempotency.Store для Redis.
type Store struct {
	client Client
}

// NewStore создает новый экземпляр Store.
func NewStore(client Client) (*Store, error) {
	if client == nil {
		return nil, errors.New("клиент redis не может быть nil")
	}
	return &Store{client: client}, nil
}

// Get возвращает сохраненный результат. Отсутствие ключа не является ошибкой.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("не удалось прочитать ключ '%s' из redis: %w", key, err)
	}
	return data, true, nil
}

// Set сохраняет результат на время ttl.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("не удалось записать ключ '%s' в redis: %w", key, err)
	}
	return nil
}
