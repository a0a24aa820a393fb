package domain

import (
	"time"

	"github.com/google/uuid"
)

// FeatureCachedEvent публикуется после того, как вектор товара вычислен и сохранён в кэш.
type FeatureCachedEvent struct {
	EventID      string
	ProductID    string
	Model        string
	Dims         int
	HasHistogram bool
	CachedAt     time.Time
}

func NewFeatureCachedEvent(entry *CachedFeatureEntry) *FeatureCachedEvent {
	return &FeatureCachedEvent{
		EventID:      uuid.NewString(),
		ProductID:    entry.ProductID,
		Model:        entry.Model,
		Dims:         entry.Features.Dims(),
		HasHistogram: entry.Histogram != nil,
		CachedAt:     entry.CreatedAt,
	}
}
