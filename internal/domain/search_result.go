package domain

// MaxSearchResults — верхняя граница длины выдачи поиска.
const MaxSearchResults = 20

// SearchResult — товар с оценкой похожести на запрос. Не сохраняется.
type SearchResult struct {
	Product         Product
	Similarity      float64 // [0, 1], округлено до двух знаков
	MatchPercentage int     // Similarity * 100, округлено
}

func NewSearchResult(product Product, similarity float64, matchPercentage int) SearchResult {
	return SearchResult{
		Product:         product,
		Similarity:      similarity,
		MatchPercentage: matchPercentage,
	}
}
