package embedding

import (
	"context"
	"fmt"
	"image"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/color"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/imaging"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// Extractor превращает байты изображения в вектор признаков.
// Backbone передаётся снаружи и должен быть инициализирован до первого вызова.
type Extractor struct {
	backbone  Backbone
	colors    *color.Descriptor
	inputSize int
	tensors   *tensorPool
	logger    logger.Logger
}

func NewExtractor(backbone Backbone, colors *color.Descriptor, inputSize int, logger logger.Logger) *Extractor {
	return &Extractor{
		backbone:  backbone,
		colors:    colors,
		inputSize: inputSize,
		tensors:   newTensorPool(inputSize),
		logger:    logger,
	}
}

// Model возвращает идентификатор модели, которой построены векторы.
func (x *Extractor) Model() string {
	return x.backbone.Name()
}

// Dims возвращает длину векторов, которые выдаёт Extract.
func (x *Extractor) Dims() int {
	return x.backbone.Dims()
}

// Ready сообщает, готова ли модель к извлечению.
func (x *Extractor) Ready() bool {
	return x.backbone.Ready()
}

// Extract возвращает вектор признаков длины Dims.
func (x *Extractor) Extract(ctx context.Context, data []byte) (domain.FeatureVector, error) {
	const op = "Extractor.Extract"

	if !x.backbone.Ready() {
		return nil, e.Wrap(op, e.ErrModelNotReady)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := x.embed(ctx, img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// Describe возвращает вектор признаков и цветовую гистограмму, декодируя изображение один раз.
func (x *Extractor) Describe(ctx context.Context, data []byte) (*domain.ImageDescriptor, error) {
	const op = "Extractor.Describe"

	if !x.backbone.Ready() {
		return nil, e.Wrap(op, e.ErrModelNotReady)
	}

	img, _, err := imaging.Decode(data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := x.embed(ctx, img)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	descriptor := &domain.ImageDescriptor{Features: vector}
	if x.colors != nil {
		descriptor.Histogram = x.colors.FromImage(img)
	}

	return descriptor, nil
}

func (x *Extractor) embed(ctx context.Context, img image.Image) (domain.FeatureVector, error) {
	tensor := x.tensors.Get()
	defer x.tensors.Put(tensor)

	fillTensor(tensor, imaging.ResizeCover(img, x.inputSize))

	vector, err := x.backbone.Infer(ctx, tensor)
	if err != nil {
		return nil, err
	}

	if vector.Dims() != x.backbone.Dims() {
		return nil, fmt.Errorf("%w: backbone returned %d values, expected %d",
			e.ErrModelInference, vector.Dims(), x.backbone.Dims())
	}

	return vector, nil
}

// fillTensor раскладывает RGB-пиксели в HWC-порядке, нормируя значения в [0, 1].
func fillTensor(t *Tensor, img image.Image) {
	bounds := img.Bounds()
	for y := 0; y < t.Size; y++ {
		for x := 0; x < t.Size; x++ {
			r, g, b := imaging.RGB(img, bounds.Min.X+x, bounds.Min.Y+y)
			offset := (y*t.Size + x) * 3
			t.Data[offset] = float32(r) / 255
			t.Data[offset+1] = float32(g) / 255
			t.Data[offset+2] = float32(b) / 255
		}
	}
}
