package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type FeatureRepository interface {
	GetMany(ctx context.Context, productIDs []string) ([]*domain.CachedFeatureEntry, error)
	Set(ctx context.Context, entry *domain.CachedFeatureEntry) error
}

type CatalogSnapshotRepository interface {
	GetSnapshot(ctx context.Context) ([]domain.Product, error)
	SetSnapshot(ctx context.Context, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type ProductRepository interface {
	ListAll(ctx context.Context) ([]domain.Product, error)
	Upsert(ctx context.Context, product *domain.Product, categoryID int64) (bool, error)
}

type CategoryRepository interface {
	Upsert(ctx context.Context, name string) (int64, error)
}

type ImageRepository interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
