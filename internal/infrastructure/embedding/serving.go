package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	stateNew int32 = iota
	stateReady
	stateDisposed
)

const modelAvailable = "AVAILABLE"

// errPermanent помечает ошибки, которые не имеет смысла повторять.
var errPermanent = errors.New("permanent inference error")

// ServingBackbone — клиент удалённой модели, доступной по REST-протоколу TensorFlow Serving:
// GET /v1/models/{name} для статуса и POST /v1/models/{name}:predict для прямого прохода.
type ServingBackbone struct {
	client     *http.Client
	cfg        *cfg.BackboneCfg
	logger     logger.Logger
	state      atomic.Int32
	initMu     sync.Mutex
	bufPool    sync.Pool
	baseJitter time.Duration
	maxJitter  time.Duration
}

func NewServingBackbone(cfg *cfg.BackboneCfg, logger logger.Logger) *ServingBackbone {
	b := &ServingBackbone{
		client:     &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		logger:     logger,
		baseJitter: 500 * time.Millisecond,
		maxJitter:  10 * time.Second,
	}
	b.bufPool.New = func() any {
		return new(bytes.Buffer)
	}

	return b
}

func (s *ServingBackbone) Ready() bool {
	return s.state.Load() == stateReady
}

func (s *ServingBackbone) Dims() int {
	return s.cfg.VectorSize
}

func (s *ServingBackbone) Name() string {
	return s.cfg.ModelName
}

// Init проверяет доступность модели и делает холостой прогон нулевым изображением.
// Конкурентные вызовы ждут одну общую инициализацию.
func (s *ServingBackbone) Init(ctx context.Context) error {
	const op = "ServingBackbone.Init"

	s.initMu.Lock()
	defer s.initMu.Unlock()

	switch s.state.Load() {
	case stateReady:
		return nil
	case stateDisposed:
		return e.Wrap(op, e.ErrModelDisposed)
	}

	if err := s.checkStatus(ctx); err != nil {
		return e.Wrap(op, err)
	}

	started := time.Now()
	warmup := NewTensor(s.cfg.InputSize)
	vector, err := s.predictWithRetry(ctx, warmup)
	if err != nil {
		return e.Wrap(op, err)
	}

	if len(vector) != s.cfg.VectorSize {
		return e.Wrap(op, fmt.Errorf("%w: model returned %d values, expected %d",
			e.ErrDimensionMismatch, len(vector), s.cfg.VectorSize))
	}

	s.state.Store(stateReady)
	s.logger.Infof("backbone %s ready, warm-up took %v", s.cfg.ModelName, time.Since(started))

	return nil
}

// Infer выполняет прямой проход с повторами для временных ошибок.
func (s *ServingBackbone) Infer(ctx context.Context, input *Tensor) (domain.FeatureVector, error) {
	const op = "ServingBackbone.Infer"

	switch s.state.Load() {
	case stateNew:
		return nil, e.Wrap(op, e.ErrModelNotReady)
	case stateDisposed:
		return nil, e.Wrap(op, e.Join(e.ErrModelNotReady, e.ErrModelDisposed))
	}

	vector, err := s.predictWithRetry(ctx, input)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// Close закрывает простаивающие соединения и переводит модель в состояние disposed.
func (s *ServingBackbone) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.state.Swap(stateDisposed) != stateDisposed {
		s.client.CloseIdleConnections()
		s.logger.Infof("backbone %s disposed", s.cfg.ModelName)
	}

	return nil
}

func (s *ServingBackbone) predictWithRetry(ctx context.Context, input *Tensor) (domain.FeatureVector, error) {
	attempts := max(1, s.cfg.MaxRetries)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		vector, err := s.predict(ctx, input)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if errors.Is(err, errPermanent) || attempt == attempts-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(s.baseJitter, s.maxJitter, attempt, jitter.DefaultJitter)
		s.logger.Warnf("inference failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, e.Join(e.ErrModelInference, err)
		}
	}

	return nil, e.Join(e.ErrModelInference, lastErr)
}

type predictResponse struct {
	Predictions [][]float32 `json:"predictions"`
	Error       string      `json:"error"`
}

type modelStatusResponse struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

func (s *ServingBackbone) predict(ctx context.Context, input *Tensor) (domain.FeatureVector, error) {
	buf := s.bufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer s.bufPool.Put(buf)

	writeInstances(buf, input)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.predictURL(), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, errors.Join(errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("model server returned status %d: %s", resp.StatusCode, errorDetail(resp.Body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, errors.Join(errPermanent, err)
		}
		return nil, err
	}

	var res predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}

	if len(res.Predictions) != 1 || len(res.Predictions[0]) == 0 {
		return nil, errors.Join(errPermanent, e.ErrEmptyVectors)
	}

	return domain.FeatureVector(res.Predictions[0]), nil
}

// errorDetail достаёт поле "error" из тела ответа, а если тело не JSON — его начало.
func errorDetail(body io.Reader) string {
	const maxDetail = 512

	raw, _ := io.ReadAll(io.LimitReader(body, maxDetail))

	var res predictResponse
	if err := json.Unmarshal(raw, &res); err == nil && res.Error != "" {
		return res.Error
	}

	return strconv.Quote(string(bytes.TrimSpace(raw)))
}

func (s *ServingBackbone) checkStatus(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.modelURL(), nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return e.Join(e.ErrModelNotReady, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return e.Join(e.ErrModelNotReady, fmt.Errorf("model status endpoint returned %d", resp.StatusCode))
	}

	var status modelStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return e.Join(e.ErrModelNotReady, err)
	}

	for _, v := range status.ModelVersionStatus {
		if v.State == modelAvailable {
			return nil
		}
	}

	return e.Join(e.ErrModelNotReady, fmt.Errorf("model %s has no available version", s.cfg.ModelName))
}

func (s *ServingBackbone) modelURL() string {
	return s.cfg.URL + "/v1/models/" + s.cfg.ModelName
}

func (s *ServingBackbone) predictURL() string {
	return s.modelURL() + ":predict"
}

// writeInstances сериализует тензор как {"instances":[[[[r,g,b],...],...]]} без промежуточных срезов.
func writeInstances(buf *bytes.Buffer, t *Tensor) {
	var num []byte

	buf.WriteString(`{"instances":[[`)
	for y := 0; y < t.Size; y++ {
		if y > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		for x := 0; x < t.Size; x++ {
			if x > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			offset := (y*t.Size + x) * 3
			for c := 0; c < 3; c++ {
				if c > 0 {
					buf.WriteByte(',')
				}
				num = strconv.AppendFloat(num[:0], float64(t.Data[offset+c]), 'g', 6, 32)
				buf.Write(num)
			}
			buf.WriteByte(']')
		}
		buf.WriteByte(']')
	}
	buf.WriteString(`]]}`)
}
