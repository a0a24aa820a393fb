package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/similarity"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const persistTimeout = 5 * time.Second

// SearchUseCase реализует поиск похожих товаров полным перебором каталога
// с постоянным кэшем признаков товаров.
type SearchUseCase struct {
	catalog     ProductCatalog
	featureRepo FeatureRepository
	extractor   FeatureExtractor
	fetcher     ImageFetcher
	publisher   EventPublisher
	cfg         *cfg.SearchCfg
	logger      logger.Logger
}

func NewSearchUC(
	catalog ProductCatalog,
	featureRepo FeatureRepository,
	extractor FeatureExtractor,
	fetcher ImageFetcher,
	publisher EventPublisher,
	cfg *cfg.SearchCfg,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		catalog:     catalog,
		featureRepo: featureRepo,
		extractor:   extractor,
		fetcher:     fetcher,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
	}
}

// ExtractFeatures строит вектор запроса по загруженному изображению.
func (s *SearchUseCase) ExtractFeatures(ctx context.Context, data []byte) (domain.FeatureVector, error) {
	const op = "SearchUseCase.ExtractFeatures"

	vector, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// ExtractFeaturesFromURL загружает изображение по ссылке и строит вектор запроса.
func (s *SearchUseCase) ExtractFeaturesFromURL(ctx context.Context, url string) (domain.FeatureVector, error) {
	const op = "SearchUseCase.ExtractFeaturesFromURL"

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	vector, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return vector, nil
}

// DescribeImage строит вектор и цветовую гистограмму загруженного изображения.
func (s *SearchUseCase) DescribeImage(ctx context.Context, data []byte) (*domain.ImageDescriptor, error) {
	const op = "SearchUseCase.DescribeImage"

	descriptor, err := s.extractor.Describe(ctx, data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return descriptor, nil
}

// DescribeImageFromURL загружает изображение по ссылке и строит его признаки.
func (s *SearchUseCase) DescribeImageFromURL(ctx context.Context, url string) (*domain.ImageDescriptor, error) {
	const op = "SearchUseCase.DescribeImageFromURL"

	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	descriptor, err := s.extractor.Describe(ctx, data)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return descriptor, nil
}

// FindSimilarProducts ранжирует весь каталог по похожести на вектор запроса.
// Ошибка по отдельному товару не прерывает поиск: товар пропускается и логируется.
func (s *SearchUseCase) FindSimilarProducts(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error) {
	const op = "SearchUseCase.FindSimilarProducts"

	minSimilarity, err := s.validateSearch(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	outcomes := s.resolveFeatures(ctx, products)
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	res := &FindSimilarRes{
		Results: make([]domain.SearchResult, 0),
		Scanned: len(products),
	}

	// Свёртка в порядке каталога: результат не зависит от порядка завершения горутин.
	for i, outcome := range outcomes {
		if outcome.err != nil {
			res.Skipped++
			s.logger.Warnf("Product %s skipped: %v", products[i].ID, outcome.err)
			continue
		}

		if outcome.computed {
			res.Computed++
		} else {
			res.Cached++
		}

		score, err := s.score(req, outcome.entry)
		if err != nil {
			res.Skipped++
			s.logger.Warnf("Product %s skipped: %v", products[i].ID, e.Wrap(op, err))
			continue
		}

		rounded := roundSimilarity(score)
		if score < minSimilarity || rounded < minSimilarity {
			continue
		}

		res.Results = append(res.Results, domain.NewSearchResult(products[i], rounded, matchPercentage(rounded)))
	}

	sort.SliceStable(res.Results, func(i, j int) bool {
		return res.Results[i].Similarity > res.Results[j].Similarity
	})

	if limit := min(s.cfg.Limit, domain.MaxSearchResults); len(res.Results) > limit {
		res.Results = res.Results[:limit]
	}

	s.logger.Debugf("search done: scanned=%d cached=%d computed=%d skipped=%d returned=%d",
		res.Scanned, res.Cached, res.Computed, res.Skipped, len(res.Results))

	return res, nil
}

// WarmCache заранее вычисляет признаки всех товаров, которых ещё нет в кэше.
func (s *SearchUseCase) WarmCache(ctx context.Context) (*WarmCacheRes, error) {
	const op = "SearchUseCase.WarmCache"

	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	outcomes := s.resolveFeatures(ctx, products)
	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	res := &WarmCacheRes{Total: len(products)}
	for i, outcome := range outcomes {
		switch {
		case outcome.err != nil:
			res.Failed++
			s.logger.Warnf("Product %s not cached: %v", products[i].ID, outcome.err)
		case outcome.computed:
			res.Computed++
		default:
			res.Cached++
		}
	}

	s.logger.Infof("feature cache warmed: total=%d cached=%d computed=%d failed=%d",
		res.Total, res.Cached, res.Computed, res.Failed)

	return res, nil
}

// featureOutcome — итог получения признаков одного товара: запись либо ошибка.
type featureOutcome struct {
	entry    *domain.CachedFeatureEntry
	computed bool
	err      error
}

// resolveFeatures возвращает признаки каждого товара в порядке каталога.
// Промахи кэша вычисляются параллельно, не более cfg.Concurrency одновременно.
func (s *SearchUseCase) resolveFeatures(ctx context.Context, products []domain.Product) []featureOutcome {
	outcomes := make([]featureOutcome, len(products))
	cached := s.lookupCached(ctx, products)

	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.Concurrency))

	for i := range products {
		if entry := cached[i]; entry != nil && entry.Model == s.extractor.Model() {
			outcomes[i] = featureOutcome{entry: entry}
			continue
		}

		i := i
		g.Go(func() error {
			entry, err := s.populate(ctx, &products[i])
			outcomes[i] = featureOutcome{entry: entry, computed: err == nil, err: err}
			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

// lookupCached читает кэш одним запросом. Ошибка хранилища превращает все записи в промахи.
func (s *SearchUseCase) lookupCached(ctx context.Context, products []domain.Product) []*domain.CachedFeatureEntry {
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}

	entries, err := s.featureRepo.GetMany(ctx, ids)
	if err != nil || len(entries) != len(products) {
		s.logger.Warnf("Feature cache lookup failed, computing all features: %v", err)
		return make([]*domain.CachedFeatureEntry, len(products))
	}

	return entries
}

// populate вычисляет признаки товара по его изображению и сохраняет их в кэш.
// Ошибка сохранения логируется и не влияет на результат.
func (s *SearchUseCase) populate(ctx context.Context, product *domain.Product) (*domain.CachedFeatureEntry, error) {
	data, err := s.fetcher.Fetch(ctx, product.ImageURL)
	if err != nil {
		return nil, err
	}

	descriptor, err := s.extractor.Describe(ctx, data)
	if err != nil {
		return nil, err
	}

	entry := domain.NewCachedFeatureEntry(product.ID, descriptor, s.extractor.Model())

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.featureRepo.Set(persistCtx, entry); err != nil {
		s.logger.Warnf("Failed to cache features of product %s: %v", product.ID, err)
		return entry, nil
	}

	if err := s.publisher.PublishFeatureCached(persistCtx, domain.NewFeatureCachedEvent(entry)); err != nil {
		s.logger.Warnf("Failed to publish feature event for product %s: %v", product.ID, err)
	}

	return entry, nil
}

// score считает похожесть товара на запрос. Цвет учитывается, только если у запроса есть гистограмма.
func (s *SearchUseCase) score(req *FindSimilarReq, entry *domain.CachedFeatureEntry) (float64, error) {
	if req.Histogram != nil {
		return similarity.Combined(req.Vector, entry.Features, req.Histogram, entry.Histogram)
	}

	return similarity.Cosine(req.Vector, entry.Features)
}

func (s *SearchUseCase) validateSearch(req *FindSimilarReq) (float64, error) {
	if req == nil || len(req.Vector) == 0 {
		return 0, e.ErrEmptyVectors
	}

	minSimilarity := s.cfg.MinSimilarity
	if req.MinSimilarity != nil {
		minSimilarity = *req.MinSimilarity
	}

	if math.IsNaN(minSimilarity) || minSimilarity < 0 || minSimilarity > 1 {
		return 0, fmt.Errorf("%w: got %v", e.ErrInvalidMinSimilarity, minSimilarity)
	}

	return minSimilarity, nil
}

// roundSimilarity округляет оценку до двух знаков после запятой.
func roundSimilarity(score float64) float64 {
	rounded, _ := decimal.NewFromFloat(score).Round(2).Float64()
	return rounded
}

// matchPercentage переводит округлённую оценку в целый процент.
func matchPercentage(score float64) int {
	return int(decimal.NewFromFloat(score).Shift(2).Round(0).IntPart())
}
