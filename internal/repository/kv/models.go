package kv

import (
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/shopspring/decimal"
)

// featureEntryModel — формат записи признаков в хранилище.
type featureEntryModel struct {
	ProductID string          `json:"product_id"`
	Vector    []float32       `json:"vector"`
	Histogram *histogramModel `json:"histogram,omitempty"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
}

type histogramModel struct {
	R []float64 `json:"r"`
	G []float64 `json:"g"`
	B []float64 `json:"b"`
}

// productModel — формат товара в снимке каталога. Цена хранится строкой, чтобы не терять точность.
type productModel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url"`
}

type catalogSnapshotModel struct {
	Products []productModel `json:"products"`
	StoredAt time.Time      `json:"stored_at"`
}

func toFeatureEntryModel(entry *domain.CachedFeatureEntry) *featureEntryModel {
	model := &featureEntryModel{
		ProductID: entry.ProductID,
		Vector:    entry.Features,
		Model:     entry.Model,
		CreatedAt: entry.CreatedAt,
	}

	if h := entry.Histogram; h != nil {
		model.Histogram = &histogramModel{R: h.R[:], G: h.G[:], B: h.B[:]}
	}

	return model
}

func (m *featureEntryModel) toEntity() *domain.CachedFeatureEntry {
	entry := &domain.CachedFeatureEntry{
		ProductID: m.ProductID,
		Features:  domain.FeatureVector(m.Vector),
		Model:     m.Model,
		CreatedAt: m.CreatedAt,
	}

	if m.Histogram != nil {
		var h domain.ColorHistogram
		copy(h.R[:], m.Histogram.R)
		copy(h.G[:], m.Histogram.G)
		copy(h.B[:], m.Histogram.B)
		entry.Histogram = &h
	}

	return entry
}

func (m *featureEntryModel) valid() bool {
	if m.ProductID == "" || len(m.Vector) == 0 {
		return false
	}

	if h := m.Histogram; h != nil {
		n := domain.HistogramBins
		return len(h.R) == n && len(h.G) == n && len(h.B) == n
	}

	return true
}

func toProductModels(products []domain.Product) []productModel {
	models := make([]productModel, len(products))
	for i, p := range products {
		models[i] = productModel{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Price:       p.Price,
			Description: p.Description,
			ImageURL:    p.ImageURL,
		}
	}

	return models
}

func toProductEntities(models []productModel) []domain.Product {
	products := make([]domain.Product, len(models))
	for i, m := range models {
		products[i] = *domain.NewProduct(m.ID, m.Name, m.Category, m.Price, m.Description, m.ImageURL)
	}

	return products
}
