package kv

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

// FeatureRepo хранит вычисленные признаки товаров. Записи не имеют срока жизни.
type FeatureRepo struct {
	store  Store
	logger logger.Logger
}

func NewFeatureRepo(store Store, logger logger.Logger) *FeatureRepo {
	return &FeatureRepo{store: store, logger: logger}
}

// Get возвращает запись товара. e.ErrKeyNotFound — промах, e.ErrCorruptCacheEntry — запись не читается.
func (r *FeatureRepo) Get(ctx context.Context, productID string) (*domain.CachedFeatureEntry, error) {
	data, err := r.store.Get(ctx, FeatureKey(productID))
	if err != nil {
		if errors.Is(err, e.ErrKeyNotFound) {
			return nil, err
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return decodeFeatureEntry(data, productID)
}

// GetMany возвращает записи в порядке идентификаторов. Промахи и нечитаемые записи равны nil.
func (r *FeatureRepo) GetMany(ctx context.Context, productIDs []string) ([]*domain.CachedFeatureEntry, error) {
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = FeatureKey(id)
	}

	values, err := r.store.GetMany(ctx, keys)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result := make([]*domain.CachedFeatureEntry, len(productIDs))
	for i, data := range values {
		if data == nil {
			continue // cache miss
		}

		entry, err := decodeFeatureEntry(data, productIDs[i])
		if err != nil {
			r.logger.Warnf("Cached features of product %s are unreadable, treating as miss: %v", productIDs[i], err)
			continue
		}
		result[i] = entry
	}

	return result, nil
}

// Set сохраняет запись без срока жизни. Повторная запись того же товара безопасна.
func (r *FeatureRepo) Set(ctx context.Context, entry *domain.CachedFeatureEntry) error {
	data, err := json.Marshal(toFeatureEntryModel(entry))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := r.store.Set(ctx, FeatureKey(entry.ProductID), data, 0); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Delete удаляет записи товаров.
func (r *FeatureRepo) Delete(ctx context.Context, productIDs ...string) error {
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = FeatureKey(id)
	}

	if err := r.store.Del(ctx, keys...); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func decodeFeatureEntry(data []byte, productID string) (*domain.CachedFeatureEntry, error) {
	var model featureEntryModel
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, e.Join(e.ErrCorruptCacheEntry, err)
	}

	if !model.valid() || model.ProductID != productID {
		return nil, e.ErrCorruptCacheEntry
	}

	return model.toEntity(), nil
}
