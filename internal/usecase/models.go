package usecase

import "github.com/DRSN-tech/visual-search/internal/domain"

// SEARCH USECASE

// FindSimilarReq — запрос ранжированного поиска по вектору запроса.
type FindSimilarReq struct {
	Vector domain.FeatureVector
	// Histogram включает смешивание с цветовым признаком. nil — только косинус признаков.
	Histogram *domain.ColorHistogram
	// MinSimilarity — порог отсечения. nil — значение из конфигурации.
	MinSimilarity *float64
}

func NewFindSimilarReq(vector domain.FeatureVector, histogram *domain.ColorHistogram, minSimilarity *float64) *FindSimilarReq {
	return &FindSimilarReq{
		Vector:        vector,
		Histogram:     histogram,
		MinSimilarity: minSimilarity,
	}
}

// FindSimilarRes — ранжированный результат и статистика прохода по каталогу.
type FindSimilarRes struct {
	Results  []domain.SearchResult
	Scanned  int // товаров в каталоге
	Cached   int // признаки взяты из кэша
	Computed int // признаки вычислены во время поиска
	Skipped  int // товары, пропущенные из-за ошибок
}

// WarmCacheRes — итог предварительного заполнения кэша признаков.
type WarmCacheRes struct {
	Total    int
	Cached   int
	Computed int
	Failed   int
}

// CATALOG USECASE

// SeedProduct — товар для загрузки в каталог.
// Если ImageData задано, изображение загружается в объектное хранилище, а ImageURL заменяется его локатором.
type SeedProduct struct {
	Product          domain.Product
	ImageData        []byte
	ImageContentType string
}

// SeedCatalogReq — запрос на загрузку каталога.
type SeedCatalogReq struct {
	Products []SeedProduct
}

// SeedCatalogRes — итог загрузки каталога.
type SeedCatalogRes struct {
	Total   int
	Changed int
}
