package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const testModel = "test-model"

type fakeCatalog struct {
	ListFn func(ctx context.Context) ([]domain.Product, error)
}

func (f *fakeCatalog) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return f.ListFn(ctx)
}

func staticCatalog(products ...domain.Product) *fakeCatalog {
	return &fakeCatalog{ListFn: func(context.Context) ([]domain.Product, error) {
		return products, nil
	}}
}

// memFeatureRepo — кэш признаков в памяти.
type memFeatureRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.CachedFeatureEntry
	sets    atomic.Int32
	SetErr  error
	GetErr  error
}

func newMemFeatureRepo() *memFeatureRepo {
	return &memFeatureRepo{entries: map[string]*domain.CachedFeatureEntry{}}
}

func (m *memFeatureRepo) GetMany(_ context.Context, ids []string) ([]*domain.CachedFeatureEntry, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.CachedFeatureEntry, len(ids))
	for i, id := range ids {
		out[i] = m.entries[id]
	}
	return out, nil
}

func (m *memFeatureRepo) Set(_ context.Context, entry *domain.CachedFeatureEntry) error {
	m.sets.Add(1)
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ProductID] = entry
	return nil
}

func (m *memFeatureRepo) put(id string, vector domain.FeatureVector, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = &domain.CachedFeatureEntry{ProductID: id, Features: vector, Model: model, CreatedAt: time.Now()}
}

// fakeExtractor сопоставляет байты изображения заранее заданному дескриптору.
type fakeExtractor struct {
	descriptors map[string]*domain.ImageDescriptor
	calls       atomic.Int32
}

func (f *fakeExtractor) Describe(_ context.Context, data []byte) (*domain.ImageDescriptor, error) {
	f.calls.Add(1)
	d, ok := f.descriptors[string(data)]
	if !ok {
		return nil, e.Join(e.ErrImageDecode, nil)
	}
	return d, nil
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte) (domain.FeatureVector, error) {
	d, err := f.Describe(ctx, data)
	if err != nil {
		return nil, err
	}
	return d.Features, nil
}

func (f *fakeExtractor) Model() string { return testModel }

// fakeFetcher отдаёт байты по ссылке; неизвестные ссылки считаются недоступными.
type fakeFetcher struct {
	images map[string][]byte
	calls  atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.calls.Add(1)
	data, ok := f.images[url]
	if !ok {
		return nil, e.ErrHostUnresolvable
	}
	return data, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.FeatureCachedEvent
	Err    error
}

func (f *fakePublisher) PublishFeatureCached(_ context.Context, event *domain.FeatureCachedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return f.Err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}
