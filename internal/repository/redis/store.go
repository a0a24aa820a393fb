// Package redis реализует хранилище ключ-значение поверх Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
	goredis "github.com/redis/go-redis/v9"
)

type Store struct {
	client *clients.RedisClient
	logger logger.Logger
}

func NewStore(client *clients.RedisClient, logger logger.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
	}
}

// Get возвращает значение по ключу или e.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, e.ErrKeyNotFound
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return data, nil
}

// GetMany возвращает значения в порядке ключей. Для отсутствующих ключей элемент равен nil.
func (s *Store) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.Client.MGet(ctx, keys...).Result()
	if err != nil {
		s.logger.Warnf("Redis MGET failed: %v", e.Wrap(whereami.WhereAmI(), err))
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([][]byte, len(keys))
	for i, val := range values {
		data, err := redisValueToBytes(val, keys[i])
		if err != nil {
			s.logger.Warnf("%v", e.Wrap(whereami.WhereAmI(), err))
			continue
		}
		result[i] = data
	}

	return result, nil
}

// Set сохраняет значение. Нулевой ttl означает хранение без срока.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Client.Set(ctx, key, value, ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Del удаляет ключи. Отсутствующие ключи не считаются ошибкой.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := s.client.Client.Del(ctx, keys...).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// redisValueToBytes конвертирует значение из Redis в []byte.
// Поддерживает string и []byte, возвращает ошибку для неизвестных типов.
func redisValueToBytes(val interface{}, key string) ([]byte, error) {
	switch v := val.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case nil:
		return nil, nil // cache miss
	default:
		return nil, fmt.Errorf("unexpected Redis value type for key %s: %T", key, val)
	}
}
