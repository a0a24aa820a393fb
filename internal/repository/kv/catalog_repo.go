package kv

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
)

// CatalogRepo хранит снимок полного каталога товаров.
type CatalogRepo struct {
	store Store
}

func NewCatalogRepo(store Store) *CatalogRepo {
	return &CatalogRepo{store: store}
}

// GetSnapshot возвращает снимок каталога или e.ErrKeyNotFound.
func (r *CatalogRepo) GetSnapshot(ctx context.Context) ([]domain.Product, error) {
	data, err := r.store.Get(ctx, catalogKey)
	if err != nil {
		if errors.Is(err, e.ErrKeyNotFound) {
			return nil, err
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var snapshot catalogSnapshotModel
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.Join(e.ErrCorruptCacheEntry, err))
	}

	return toProductEntities(snapshot.Products), nil
}

// SetSnapshot сохраняет снимок каталога на ttl.
func (r *CatalogRepo) SetSnapshot(ctx context.Context, products []domain.Product, ttl time.Duration) error {
	data, err := json.Marshal(catalogSnapshotModel{
		Products: toProductModels(products),
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := r.store.Set(ctx, catalogKey, data, ttl); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Invalidate удаляет снимок каталога.
func (r *CatalogRepo) Invalidate(ctx context.Context) error {
	if err := r.store.Del(ctx, catalogKey); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
