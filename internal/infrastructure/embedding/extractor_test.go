package embedding

import (
	"bytes"
	"context"
	"errors"
	"image"
	stdcolor "image/color"
	"image/png"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/color"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// stubBackbone возвращает средние значения каналов тензора, дополненные индексами.
type stubBackbone struct {
	ready   bool
	dims    int
	outDims int
	last    []float32
	err     error
}

func (s *stubBackbone) Init(context.Context) error { s.ready = true; return nil }
func (s *stubBackbone) Ready() bool                { return s.ready }
func (s *stubBackbone) Dims() int                  { return s.dims }
func (s *stubBackbone) Name() string               { return "stub" }
func (s *stubBackbone) Close() error               { s.ready = false; return nil }

func (s *stubBackbone) Infer(_ context.Context, t *Tensor) (domain.FeatureVector, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.last = append(s.last[:0], t.Data...)

	var mean [3]float32
	for i, v := range t.Data {
		mean[i%3] += v
	}
	pixels := float32(t.Size * t.Size)

	n := s.dims
	if s.outDims > 0 {
		n = s.outDims
	}
	out := make(domain.FeatureVector, n)
	for i := range out {
		out[i] = mean[i%3]/pixels + float32(i)/100
	}
	return out, nil
}

func solidPNG(t *testing.T, w, h int, c stdcolor.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func newTestExtractor(b Backbone) *Extractor {
	log := logger.NewNopLogger()
	return NewExtractor(b, color.NewDescriptor(16, log), 8, log)
}

func TestExtractor_Extract(t *testing.T) {
	b := &stubBackbone{ready: true, dims: 6}
	x := newTestExtractor(b)

	vec, err := x.Extract(context.Background(), solidPNG(t, 20, 10, stdcolor.NRGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if vec.Dims() != 6 {
		t.Fatalf("dims = %d, want 6", vec.Dims())
	}

	if len(b.last) != 8*8*3 {
		t.Fatalf("tensor len = %d, want %d", len(b.last), 8*8*3)
	}
	for i := 0; i < len(b.last); i += 3 {
		if b.last[i] != 1 || b.last[i+1] != 0 || b.last[i+2] != 0 {
			t.Fatalf("pixel %d = %v, want pure red normalized", i/3, b.last[i:i+3])
		}
	}
}

func TestExtractor_Deterministic(t *testing.T) {
	x := newTestExtractor(&stubBackbone{ready: true, dims: 4})
	data := solidPNG(t, 30, 30, stdcolor.NRGBA{R: 10, G: 120, B: 200, A: 255})

	first, err := x.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	second, err := x.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("vectors differ at %d: %v != %v", i, first[i], second[i])
		}
	}
}

func TestExtractor_Errors(t *testing.T) {
	valid := solidPNG(t, 4, 4, stdcolor.White)

	tests := []struct {
		name     string
		backbone *stubBackbone
		data     []byte
		wantErr  error
	}{
		{
			name:     "model not ready",
			backbone: &stubBackbone{dims: 4},
			data:     valid,
			wantErr:  e.ErrModelNotReady,
		},
		{
			name:     "empty input",
			backbone: &stubBackbone{ready: true, dims: 4},
			data:     nil,
			wantErr:  e.ErrEmptyImage,
		},
		{
			name:     "not an image",
			backbone: &stubBackbone{ready: true, dims: 4},
			data:     []byte("definitely not an image"),
			wantErr:  e.ErrImageDecode,
		},
		{
			name:     "backbone failure",
			backbone: &stubBackbone{ready: true, dims: 4, err: e.ErrModelInference},
			data:     valid,
			wantErr:  e.ErrModelInference,
		},
		{
			name:     "wrong output length",
			backbone: &stubBackbone{ready: true, dims: 4, outDims: 3},
			data:     valid,
			wantErr:  e.ErrModelInference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newTestExtractor(tt.backbone)

			_, err := x.Extract(context.Background(), tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Extract err = %v, want %v", err, tt.wantErr)
			}

			_, err = x.Describe(context.Background(), tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Describe err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExtractor_Describe(t *testing.T) {
	x := newTestExtractor(&stubBackbone{ready: true, dims: 5})
	data := solidPNG(t, 12, 12, stdcolor.NRGBA{G: 255, A: 255})

	desc, err := x.Describe(context.Background(), data)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}

	vec, err := x.Extract(context.Background(), data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	for i := range vec {
		if desc.Features[i] != vec[i] {
			t.Fatalf("Describe features differ from Extract at %d", i)
		}
	}

	if desc.Histogram == nil {
		t.Fatal("histogram must be present")
	}
	if desc.Histogram.G[255] != 1 || desc.Histogram.R[0] != 1 {
		t.Errorf("unexpected histogram for pure green: G[255]=%v R[0]=%v", desc.Histogram.G[255], desc.Histogram.R[0])
	}
}
