// Package kv хранит признаки товаров и снимок каталога в хранилище ключ-значение.
// Сериализация выполняется только здесь; остальной код работает с доменными типами.
package kv

import (
	"context"
	"time"
)

// Store — хранилище сериализованных значений (Redis или SQLite).
type Store interface {
	// Get возвращает значение или e.ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMany возвращает значения в порядке ключей, nil для отсутствующих.
	GetMany(ctx context.Context, keys []string) ([][]byte, error)
	// Set сохраняет значение; нулевой ttl означает хранение без срока.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

const (
	featureKeyPrefix = "features:"
	catalogKey       = "catalog:products"
)

// FeatureKey возвращает ключ записи признаков товара.
func FeatureKey(productID string) string {
	return featureKeyPrefix + productID
}
