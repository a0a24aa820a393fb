package color

import (
	"bytes"
	"image"
	stdcolor "image/color"
	"image/png"
	"math"
	"math/rand"
	"testing"

	"github.com/DRSN-tech/visual-search/pkg/logger"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestHistogramSumsToOne(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	d := NewDescriptor(DefaultSize, logger.NewNopLogger())

	sizes := [][2]int{{100, 100}, {37, 211}, {640, 480}, {1, 1}}
	for _, s := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, s[0], s[1]))
		for i := range img.Pix {
			img.Pix[i] = uint8(r.Intn(256))
		}

		hist := d.Histogram(encodePNG(t, img))
		if hist == nil {
			t.Fatalf("Histogram(%dx%d) = nil", s[0], s[1])
		}

		for name, ch := range map[string][]float64{"R": hist.R[:], "G": hist.G[:], "B": hist.B[:]} {
			var sum float64
			for _, v := range ch {
				if v < 0 {
					t.Fatalf("channel %s has negative bucket %v", name, v)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("%dx%d channel %s sums to %v, want 1", s[0], s[1], name, sum)
			}
		}
	}
}

func TestHistogramSolidColor(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, stdcolor.NRGBA{R: 255, G: 128, B: 0, A: 255})
		}
	}

	hist := NewDescriptor(DefaultSize, logger.NewNopLogger()).Histogram(encodePNG(t, img))
	if hist == nil {
		t.Fatal("Histogram() = nil")
	}
	if hist.R[255] != 1 || hist.G[128] != 1 || hist.B[0] != 1 {
		t.Errorf("solid color buckets = R[255]=%v G[128]=%v B[0]=%v, want 1", hist.R[255], hist.G[128], hist.B[0])
	}
}

func TestHistogramUndecodable(t *testing.T) {
	d := NewDescriptor(DefaultSize, logger.NewNopLogger())

	if hist := d.Histogram([]byte("definitely not an image")); hist != nil {
		t.Errorf("Histogram(garbage) = %v, want nil", hist)
	}
	if hist := d.Histogram(nil); hist != nil {
		t.Errorf("Histogram(nil) = %v, want nil", hist)
	}
}
