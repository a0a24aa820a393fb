package domain

import "time"

// HistogramBins — число корзин гистограммы на один цветовой канал.
const HistogramBins = 256

// FeatureVector — вектор признаков фиксированной длины, полученный от модели.
type FeatureVector []float32

// Dims возвращает длину вектора.
func (v FeatureVector) Dims() int {
	return len(v)
}

// ColorHistogram — нормированное распределение интенсивностей по каналам R, G, B.
// Сумма корзин каждого канала равна 1.
type ColorHistogram struct {
	R [HistogramBins]float64
	G [HistogramBins]float64
	B [HistogramBins]float64
}

// Channels возвращает каналы гистограммы в порядке R, G, B.
func (h *ColorHistogram) Channels() [3][]float64 {
	return [3][]float64{h.R[:], h.G[:], h.B[:]}
}

// ImageDescriptor — все признаки одного изображения.
// Histogram может отсутствовать: цветовой признак необязателен.
type ImageDescriptor struct {
	Features  FeatureVector
	Histogram *ColorHistogram
}

// CachedFeatureEntry — сохранённые признаки товара. Запись не инвалидируется.
type CachedFeatureEntry struct {
	ProductID string
	Features  FeatureVector
	Histogram *ColorHistogram
	Model     string
	CreatedAt time.Time
}

func NewCachedFeatureEntry(productID string, descriptor *ImageDescriptor, model string) *CachedFeatureEntry {
	return &CachedFeatureEntry{
		ProductID: productID,
		Features:  descriptor.Features,
		Histogram: descriptor.Histogram,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}
