// Package embedding превращает изображения в векторы признаков с помощью предобученной модели (backbone).
package embedding

import (
	"context"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// Backbone — дорогой в загрузке ресурс модели с явным жизненным циклом.
// Infer можно вызывать конкурентно только после успешного Init.
type Backbone interface {
	// Init загружает модель и прогревает её одним холостым проходом. Идемпотентен.
	Init(ctx context.Context) error

	// Infer выполняет прямой проход для одного изображения (батч из одного элемента).
	Infer(ctx context.Context, input *Tensor) (domain.FeatureVector, error)

	// Ready сообщает, завершена ли инициализация.
	Ready() bool

	// Dims возвращает длину выходного вектора L.
	Dims() int

	// Name возвращает идентификатор модели, сохраняемый вместе с векторами.
	Name() string

	// Close освобождает ресурсы модели. После Close модель не готова.
	Close() error
}

// Tensor — входное изображение Size×Size×3 в порядке HWC, значения в [0, 1].
type Tensor struct {
	Size int
	Data []float32
}

// NewTensor выделяет тензор для изображения size×size.
func NewTensor(size int) *Tensor {
	return &Tensor{Size: size, Data: make([]float32, size*size*3)}
}

// Reset обнуляет значения тензора.
func (t *Tensor) Reset() {
	clear(t.Data)
}

// tensorPool переиспользует тензоры одного размера между вызовами извлечения.
type tensorPool struct {
	size int
	pool sync.Pool
}

func newTensorPool(size int) *tensorPool {
	p := &tensorPool{size: size}
	p.pool.New = func() any {
		return NewTensor(size)
	}

	return p
}

func (p *tensorPool) Get() *Tensor {
	return p.pool.Get().(*Tensor)
}

func (p *tensorPool) Put(t *Tensor) {
	t.Reset()
	p.pool.Put(t)
}
