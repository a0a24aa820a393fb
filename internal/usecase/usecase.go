package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

type SearchUC interface {
	ExtractFeatures(ctx context.Context, data []byte) (domain.FeatureVector, error)
	ExtractFeaturesFromURL(ctx context.Context, url string) (domain.FeatureVector, error)
	DescribeImage(ctx context.Context, data []byte) (*domain.ImageDescriptor, error)
	DescribeImageFromURL(ctx context.Context, url string) (*domain.ImageDescriptor, error)
	FindSimilarProducts(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error)
	WarmCache(ctx context.Context) (*WarmCacheRes, error)
}

type CatalogUC interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error)
	SeedCatalog(ctx context.Context, req *SeedCatalogReq) (*SeedCatalogRes, error)
}
