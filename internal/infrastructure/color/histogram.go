// Package color строит цветовой дескриптор изображения — нормированную гистограмму по каналам.
package color

import (
	"image"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/imaging"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// DefaultSize — сторона квадрата, до которого уменьшается изображение перед подсчётом.
const DefaultSize = 100

// Descriptor строит цветовые гистограммы. Безопасен для параллельного использования.
type Descriptor struct {
	size   int
	logger logger.Logger
}

func NewDescriptor(size int, logger logger.Logger) *Descriptor {
	if size <= 0 {
		size = DefaultSize
	}

	return &Descriptor{size: size, logger: logger}
}

// Histogram возвращает гистограмму изображения или nil, если его не удалось декодировать.
// Цвет — необязательный признак, поэтому ошибка декодирования не возвращается вызывающему.
func (d *Descriptor) Histogram(data []byte) *domain.ColorHistogram {
	img, _, err := imaging.Decode(data)
	if err != nil {
		d.logger.Debugf("color histogram skipped: %v", err)
		return nil
	}

	return d.FromImage(img)
}

// FromImage строит гистограмму уже декодированного изображения.
func (d *Descriptor) FromImage(img image.Image) *domain.ColorHistogram {
	scaled := imaging.ResizeExact(img, d.size, d.size)
	bounds := scaled.Bounds()

	var hist domain.ColorHistogram
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b := imaging.RGB(scaled, x, y)
			hist.R[r]++
			hist.G[g]++
			hist.B[b]++
		}
	}

	total := float64(bounds.Dx() * bounds.Dy())
	for i := 0; i < domain.HistogramBins; i++ {
		hist.R[i] /= total
		hist.G[i] /= total
		hist.B[i] /= total
	}

	return &hist
}
