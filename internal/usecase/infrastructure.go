package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type FeatureExtractor interface {
	Extract(ctx context.Context, data []byte) (domain.FeatureVector, error)
	Describe(ctx context.Context, data []byte) (*domain.ImageDescriptor, error)
	Model() string
}

type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type EventPublisher interface {
	PublishFeatureCached(ctx context.Context, event *domain.FeatureCachedEvent) error
}

// ProductCatalog — источник полного списка товаров для поиска.
type ProductCatalog interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// ImageCleaner удаляет в фоне изображения, загруженные для неудавшейся операции.
type ImageCleaner interface {
	CleanupImages(keys []string)
}
