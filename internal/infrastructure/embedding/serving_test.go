package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const testModel = "mobilenet_test"

// fakeServing эмулирует REST API TensorFlow Serving.
type fakeServing struct {
	dims        int
	state       string
	statusCalls atomic.Int32
	predicts    atomic.Int32
	// failFirst — сколько первых predict-запросов вернут failStatus.
	failFirst  int32
	failStatus int
	// failBody, если задан, отдаётся вместо JSON-ошибки (например, HTML-страница прокси).
	failBody string
}

func (f *fakeServing) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/models/"+testModel:
		f.statusCalls.Add(1)
		state := f.state
		if state == "" {
			state = modelAvailable
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model_version_status": []map[string]string{{"version": "1", "state": state}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/v1/models/"+testModel+":predict":
		n := f.predicts.Add(1)
		if n <= f.failFirst {
			if f.failBody != "" {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(f.failStatus)
				_, _ = w.Write([]byte(f.failBody))
				return
			}
			w.WriteHeader(f.failStatus)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unavailable"})
			return
		}

		var req struct {
			Instances [][][][]float32 `json:"instances"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Instances) != 1 {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad instances"})
			return
		}

		var sum float32
		for _, row := range req.Instances[0] {
			for _, px := range row {
				sum += px[0] + px[1] + px[2]
			}
		}

		out := make([]float32, f.dims)
		for i := range out {
			out[i] = sum + float32(i)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"predictions": [][]float32{out}})
	default:
		http.NotFound(w, r)
	}
}

func newTestBackbone(t *testing.T, fake *fakeServing, dims int) *ServingBackbone {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	b := NewServingBackbone(&cfg.BackboneCfg{
		URL:            srv.URL,
		ModelName:      testModel,
		VectorSize:     dims,
		InputSize:      4,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     3,
	}, logger.NewNopLogger())
	b.baseJitter = time.Millisecond
	b.maxJitter = 5 * time.Millisecond

	return b
}

func TestServingBackbone_InitAndInfer(t *testing.T) {
	fake := &fakeServing{dims: 8}
	b := newTestBackbone(t, fake, 8)

	if b.Ready() {
		t.Fatal("backbone must not be ready before Init")
	}

	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !b.Ready() {
		t.Fatal("backbone must be ready after Init")
	}

	input := NewTensor(4)
	for i := range input.Data {
		input.Data[i] = 0.5
	}

	vec, err := b.Infer(context.Background(), input)
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if vec.Dims() != 8 {
		t.Fatalf("dims = %d, want 8", vec.Dims())
	}
	if vec[0] != 24 {
		t.Errorf("vec[0] = %v, want 24", vec[0])
	}
}

func TestServingBackbone_InferBeforeInit(t *testing.T) {
	b := newTestBackbone(t, &fakeServing{dims: 4}, 4)

	_, err := b.Infer(context.Background(), NewTensor(4))
	if !errors.Is(err, e.ErrModelNotReady) {
		t.Fatalf("err = %v, want ErrModelNotReady", err)
	}
}

func TestServingBackbone_InitIsSharedAndIdempotent(t *testing.T) {
	fake := &fakeServing{dims: 4}
	b := newTestBackbone(t, fake, 4)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Init(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Init #%d: %v", i, err)
		}
	}
	if got := fake.statusCalls.Load(); got != 1 {
		t.Errorf("status calls = %d, want 1", got)
	}
	if got := fake.predicts.Load(); got != 1 {
		t.Errorf("warm-up predicts = %d, want 1", got)
	}
}

func TestServingBackbone_InitFailures(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeServing
		dims    int
		wantErr error
	}{
		{
			name:    "model loading",
			fake:    &fakeServing{dims: 4, state: "LOADING"},
			dims:    4,
			wantErr: e.ErrModelNotReady,
		},
		{
			name:    "unexpected output size",
			fake:    &fakeServing{dims: 3},
			dims:    4,
			wantErr: e.ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackbone(t, tt.fake, tt.dims)

			err := b.Init(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if b.Ready() {
				t.Fatal("backbone must stay not ready after failed Init")
			}
		})
	}
}

func TestServingBackbone_UnreachableServer(t *testing.T) {
	b := NewServingBackbone(&cfg.BackboneCfg{
		URL:            "http://127.0.0.1:1",
		ModelName:      testModel,
		VectorSize:     4,
		InputSize:      4,
		RequestTimeout: time.Second,
		MaxRetries:     1,
	}, logger.NewNopLogger())

	if err := b.Init(context.Background()); !errors.Is(err, e.ErrModelNotReady) {
		t.Fatalf("err = %v, want ErrModelNotReady", err)
	}
}

func TestServingBackbone_RetriesTransientErrors(t *testing.T) {
	fake := &fakeServing{dims: 4, failFirst: 2, failStatus: http.StatusServiceUnavailable}
	b := newTestBackbone(t, fake, 4)

	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got := fake.predicts.Load(); got != 3 {
		t.Errorf("predicts = %d, want 3", got)
	}
}

func TestServingBackbone_DoesNotRetryClientErrors(t *testing.T) {
	fake := &fakeServing{dims: 4, failFirst: 10, failStatus: http.StatusBadRequest}
	b := newTestBackbone(t, fake, 4)

	err := b.Init(context.Background())
	if !errors.Is(err, e.ErrModelInference) {
		t.Fatalf("err = %v, want ErrModelInference", err)
	}
	if got := fake.predicts.Load(); got != 1 {
		t.Errorf("predicts = %d, want 1", got)
	}
}

func TestServingBackbone_NonJSONErrorBodies(t *testing.T) {
	const page = "<html><body><h1>404 Not Found</h1></body></html>"

	tests := []struct {
		name        string
		status      int
		wantPredict int32
	}{
		{name: "client error is permanent", status: http.StatusNotFound, wantPredict: 1},
		{name: "server error is retried", status: http.StatusBadGateway, wantPredict: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeServing{dims: 4, failFirst: 10, failStatus: tt.status, failBody: page}
			b := newTestBackbone(t, fake, 4)

			err := b.Init(context.Background())
			if !errors.Is(err, e.ErrModelInference) {
				t.Fatalf("err = %v, want ErrModelInference", err)
			}
			if got := fake.predicts.Load(); got != tt.wantPredict {
				t.Errorf("predicts = %d, want %d", got, tt.wantPredict)
			}
			if !strings.Contains(err.Error(), "404 Not Found") {
				t.Errorf("err = %v, want response body in message", err)
			}
		})
	}
}

func TestServingBackbone_Close(t *testing.T) {
	b := newTestBackbone(t, &fakeServing{dims: 4}, 4)

	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if b.Ready() {
		t.Fatal("backbone must not be ready after Close")
	}

	_, err := b.Infer(context.Background(), NewTensor(4))
	if !errors.Is(err, e.ErrModelNotReady) || !errors.Is(err, e.ErrModelDisposed) {
		t.Fatalf("Infer after Close: %v", err)
	}

	if err := b.Init(context.Background()); !errors.Is(err, e.ErrModelDisposed) {
		t.Fatalf("Init after Close: %v", err)
	}
}

func TestWriteInstances(t *testing.T) {
	tensor := NewTensor(2)
	for i := range tensor.Data {
		tensor.Data[i] = float32(i) / 10
	}

	var buf bytes.Buffer
	writeInstances(&buf, tensor)

	var decoded struct {
		Instances [][][][]float32 `json:"instances"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}

	if len(decoded.Instances) != 1 || len(decoded.Instances[0]) != 2 || len(decoded.Instances[0][0]) != 2 {
		t.Fatalf("unexpected shape: %v", decoded.Instances)
	}
	if got := decoded.Instances[0][1][0][2]; got != tensor.Data[(1*2+0)*3+2] {
		t.Errorf("pixel (0,1) blue = %v, want %v", got, tensor.Data[8])
	}
}
