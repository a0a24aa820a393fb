package similarity

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const epsilon = 1e-6

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func randomVector(r *rand.Rand, n int) domain.FeatureVector {
	v := make(domain.FeatureVector, n)
	for i := range v {
		v[i] = r.Float32()
	}
	return v
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b domain.FeatureVector
		want float64
	}{
		{"identical", domain.FeatureVector{1, 2, 3}, domain.FeatureVector{1, 2, 3}, 1},
		{"positive multiple", domain.FeatureVector{1, 2, 3}, domain.FeatureVector{2.5, 5, 7.5}, 1},
		{"orthogonal", domain.FeatureVector{1, 0}, domain.FeatureVector{0, 1}, 0},
		{"opposite", domain.FeatureVector{1, 1}, domain.FeatureVector{-1, -1}, -1},
		{"zero first", domain.FeatureVector{0, 0, 0}, domain.FeatureVector{1, 2, 3}, 0},
		{"zero second", domain.FeatureVector{1, 2, 3}, domain.FeatureVector{0, 0, 0}, 0},
		{"both empty", domain.FeatureVector{}, domain.FeatureVector{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Cosine() error = %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine(domain.FeatureVector{1, 2}, domain.FeatureVector{1, 2, 3})
	if !errors.Is(err, e.ErrDimensionMismatch) {
		t.Fatalf("Cosine() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		a := randomVector(r, 64)
		b := randomVector(r, 64)

		ab, _ := Cosine(a, b)
		ba, _ := Cosine(b, a)
		if !almostEqual(ab, ba) {
			t.Fatalf("not symmetric: sim(a,b)=%v sim(b,a)=%v", ab, ba)
		}

		self, _ := Cosine(a, a)
		if !almostEqual(self, 1) {
			t.Fatalf("sim(a,a) = %v, want 1", self)
		}

		scaled := make(domain.FeatureVector, len(a))
		k := 0.1 + r.Float32()*10
		for j := range a {
			scaled[j] = a[j] * k
		}
		if s, _ := Cosine(a, scaled); math.Abs(s-1) > 1e-5 {
			t.Fatalf("sim(a, %v*a) = %v, want 1", k, s)
		}

		if ab < 0 || ab > 1+epsilon {
			t.Fatalf("non-negative vectors gave similarity %v outside [0,1]", ab)
		}
	}
}

func uniformHistogram() *domain.ColorHistogram {
	var h domain.ColorHistogram
	for i := 0; i < domain.HistogramBins; i++ {
		h.R[i] = 1.0 / domain.HistogramBins
		h.G[i] = 1.0 / domain.HistogramBins
		h.B[i] = 1.0 / domain.HistogramBins
	}
	return &h
}

func TestColor(t *testing.T) {
	uniform := uniformHistogram()

	var red domain.ColorHistogram
	red.R[255], red.G[0], red.B[0] = 1, 1, 1

	var blue domain.ColorHistogram
	blue.R[0], blue.G[0], blue.B[255] = 1, 1, 1

	if got := Color(uniform, uniform); !almostEqual(got, 1) {
		t.Errorf("Color(uniform, uniform) = %v, want 1", got)
	}
	// G совпадает, R и B ортогональны.
	if got := Color(&red, &blue); !almostEqual(got, 1.0/3) {
		t.Errorf("Color(red, blue) = %v, want 1/3", got)
	}
	if got := Color(nil, uniform); got != 0 {
		t.Errorf("Color(nil, h) = %v, want 0", got)
	}
	if got := Color(uniform, nil); got != 0 {
		t.Errorf("Color(h, nil) = %v, want 0", got)
	}
}

func TestCombined(t *testing.T) {
	v := domain.FeatureVector{1, 2, 3}
	h := uniformHistogram()

	tests := []struct {
		name   string
		h1, h2 *domain.ColorHistogram
		want   float64
	}{
		{"both histograms", h, h, 1},
		{"missing query histogram", nil, h, 0.8},
		{"missing product histogram", h, nil, 0.8},
		{"no histograms", nil, nil, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Combined(v, v, tt.h1, tt.h2)
			if err != nil {
				t.Fatalf("Combined() error = %v", err)
			}
			if !almostEqual(got, tt.want) {
				t.Errorf("Combined() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Combined(v, domain.FeatureVector{1}, h, h); !errors.Is(err, e.ErrDimensionMismatch) {
		t.Errorf("Combined() error = %v, want ErrDimensionMismatch", err)
	}
}
