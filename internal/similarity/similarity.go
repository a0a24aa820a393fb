// Package similarity вычисляет похожесть векторов признаков и цветовых гистограмм.
package similarity

import (
	"fmt"
	"math"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const (
	// FeatureWeight — вес косинусной близости признаков модели в комбинированной оценке.
	FeatureWeight = 0.8
	// ColorWeight — вес цветовой близости. Применяется и при отсутствии гистограммы (вклад 0).
	ColorWeight = 0.2
)

// Cosine возвращает косинусную близость векторов.
// Векторы разной длины дают e.ErrDimensionMismatch; нулевой вектор даёт 0.
func Cosine(a, b domain.FeatureVector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", e.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	return cosineFromSums(dot, normA, normB), nil
}

// cosineFloat64 — то же, что Cosine, для каналов гистограммы одинаковой длины.
func cosineFloat64(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	return cosineFromSums(dot, normA, normB)
}

func cosineFromSums(dot, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Color возвращает среднее косинусных близостей трёх каналов.
// Если хотя бы одна гистограмма отсутствует, возвращается 0.
func Color(a, b *domain.ColorHistogram) float64 {
	if a == nil || b == nil {
		return 0
	}

	chA, chB := a.Channels(), b.Channels()

	var sum float64
	for i := range chA {
		sum += cosineFloat64(chA[i], chB[i])
	}

	return sum / float64(len(chA))
}

// Combined смешивает близость признаков (0.8) и цветовую близость (0.2).
func Combined(f1, f2 domain.FeatureVector, h1, h2 *domain.ColorHistogram) (float64, error) {
	featureSim, err := Cosine(f1, f2)
	if err != nil {
		return 0, err
	}

	return FeatureWeight*featureSim + ColorWeight*Color(h1, h2), nil
}
