package usecase

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// CatalogUseCase отдаёт каталог товаров из снимка в хранилище ключ-значение.
// При промахе снимок перестраивается из PostgreSQL. Без PostgreSQL снимок сам является источником истины.
type CatalogUseCase struct {
	snapshotRepo CatalogSnapshotRepository
	productRepo  ProductRepository
	categoryRepo CategoryRepository
	imageRepo    ImageRepository
	imageCleaner ImageCleaner
	txRunner     TxRunner
	cfg          *cfg.CatalogCfg
	logger       logger.Logger
}

// NewCatalogUC создаёт сценарии каталога. productRepo, categoryRepo и txRunner равны nil,
// если PostgreSQL не настроен; imageRepo и imageCleaner равны nil без объектного хранилища.
func NewCatalogUC(
	snapshotRepo CatalogSnapshotRepository,
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	imageRepo ImageRepository,
	imageCleaner ImageCleaner,
	txRunner TxRunner,
	cfg *cfg.CatalogCfg,
	logger logger.Logger,
) *CatalogUseCase {
	return &CatalogUseCase{
		snapshotRepo: snapshotRepo,
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		imageRepo:    imageRepo,
		imageCleaner: imageCleaner,
		txRunner:     txRunner,
		cfg:          cfg,
		logger:       logger,
	}
}

// ListProducts возвращает весь каталог.
func (c *CatalogUseCase) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const op = "CatalogUseCase.ListProducts"

	products, err := c.snapshotRepo.GetSnapshot(ctx)
	if err == nil {
		return products, nil
	}

	if !c.hasDatabase() {
		if errors.Is(err, e.ErrKeyNotFound) {
			return []domain.Product{}, nil
		}
		return nil, e.Wrap(op, err)
	}

	if !errors.Is(err, e.ErrKeyNotFound) {
		c.logger.Warnf("Catalog snapshot unavailable, loading from database: %v", e.Wrap(op, err))
	}

	products, err = c.productRepo.ListAll(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Фоновое сохранение снимка каталога
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.snapshotRepo.SetSnapshot(bgCtx, products, c.cfg.SnapshotTTL); err != nil {
			c.logger.Warnf("Failed to store catalog snapshot: %v", e.Wrap(op, err))
		}
	}()

	return products, nil
}

// ProductsByCategory возвращает товары категории. Сравнение без учёта регистра.
func (c *CatalogUseCase) ProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	const op = "CatalogUseCase.ProductsByCategory"

	products, err := c.ListProducts(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	result := make([]domain.Product, 0)
	for _, p := range products {
		if domain.SameCategory(p.Category, category) {
			result = append(result, p)
		}
	}

	return result, nil
}

// SeedCatalog загружает товары в каталог. С PostgreSQL все товары пишутся в одной транзакции,
// после чего снимок каталога сбрасывается.
func (c *CatalogUseCase) SeedCatalog(ctx context.Context, req *SeedCatalogReq) (*SeedCatalogRes, error) {
	const op = "CatalogUseCase.SeedCatalog"

	if err := c.validateSeed(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	products, uploaded, err := c.uploadImages(ctx, req.Products)
	if err != nil {
		c.cleanup(uploaded)
		return nil, e.Wrap(op, err)
	}

	var res *SeedCatalogRes
	if c.hasDatabase() {
		res, err = c.seedDatabase(ctx, products)
	} else {
		res, err = c.seedSnapshot(ctx, products)
	}
	if err != nil {
		c.cleanup(uploaded)
		return nil, e.Wrap(op, err)
	}

	c.logger.Infof("catalog seeded: total=%d changed=%d", res.Total, res.Changed)

	return res, nil
}

func (c *CatalogUseCase) seedDatabase(ctx context.Context, products []domain.Product) (*SeedCatalogRes, error) {
	res := &SeedCatalogRes{Total: len(products)}

	err := c.txRunner.WithinTx(ctx, func(ctx context.Context) error {
		categoryIDs := make(map[string]int64)
		for i := range products {
			key := strings.ToLower(products[i].Category)
			categoryID, ok := categoryIDs[key]
			if !ok {
				var err error
				categoryID, err = c.categoryRepo.Upsert(ctx, products[i].Category)
				if err != nil {
					return err
				}
				categoryIDs[key] = categoryID
			}

			changed, err := c.productRepo.Upsert(ctx, &products[i], categoryID)
			if err != nil {
				return e.Wrap("product "+products[i].ID, err)
			}
			if changed {
				res.Changed++
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := c.snapshotRepo.Invalidate(ctx); err != nil {
		c.logger.Warnf("Failed to invalidate catalog snapshot: %v", err)
	}

	return res, nil
}

// seedSnapshot объединяет товары с текущим снимком по идентификатору и сохраняет его без срока жизни.
func (c *CatalogUseCase) seedSnapshot(ctx context.Context, products []domain.Product) (*SeedCatalogRes, error) {
	existing, err := c.snapshotRepo.GetSnapshot(ctx)
	if err != nil && !errors.Is(err, e.ErrKeyNotFound) {
		return nil, err
	}

	index := make(map[string]int, len(existing))
	for i, p := range existing {
		index[p.ID] = i
	}

	res := &SeedCatalogRes{Total: len(products)}
	for _, p := range products {
		if i, ok := index[p.ID]; ok {
			if !sameProduct(existing[i], p) {
				existing[i] = p
				res.Changed++
			}
			continue
		}

		index[p.ID] = len(existing)
		existing = append(existing, p)
		res.Changed++
	}

	if err := c.snapshotRepo.SetSnapshot(ctx, existing, 0); err != nil {
		return nil, err
	}

	return res, nil
}

// uploadImages загружает локальные изображения в объектное хранилище и подставляет их локаторы.
// Возвращает ключи загруженных объектов, в том числе при ошибке.
func (c *CatalogUseCase) uploadImages(ctx context.Context, seed []SeedProduct) ([]domain.Product, []string, error) {
	products := make([]domain.Product, len(seed))
	var uploaded []string

	for i, s := range seed {
		products[i] = s.Product
		if len(s.ImageData) == 0 {
			continue
		}

		if c.imageRepo == nil {
			return nil, uploaded, e.Wrap("product "+s.Product.ID, e.ErrObjectStorageAbsent)
		}

		key := path.Join("products", s.Product.ID+extensionFor(s.ImageContentType))
		locator, err := c.imageRepo.Upload(ctx, key, s.ImageData, s.ImageContentType)
		if err != nil {
			return nil, uploaded, e.Wrap("product "+s.Product.ID, err)
		}
		uploaded = append(uploaded, key)
		products[i].ImageURL = locator
	}

	return products, uploaded, nil
}

// cleanup удаляет изображения, загруженные для неудавшейся загрузки каталога.
func (c *CatalogUseCase) cleanup(keys []string) {
	if len(keys) == 0 || c.imageCleaner == nil {
		return
	}

	c.logger.Warnf("catalog seed failed, removing %d uploaded images", len(keys))
	c.imageCleaner.CleanupImages(keys)
}

func (c *CatalogUseCase) validateSeed(req *SeedCatalogReq) error {
	if req == nil || len(req.Products) == 0 {
		return e.ErrMissingFields
	}

	seen := make(map[string]struct{}, len(req.Products))
	for _, s := range req.Products {
		p := s.Product
		if strings.TrimSpace(p.ID) == "" {
			return e.ErrProductIDRequired
		}
		if _, dup := seen[p.ID]; dup {
			return e.Wrap("duplicate product "+p.ID, e.ErrMissingFields)
		}
		seen[p.ID] = struct{}{}

		if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Category) == "" {
			return e.Wrap("product "+p.ID, e.ErrMissingFields)
		}
		if p.Price.IsNegative() {
			return e.Wrap("product "+p.ID, e.ErrInvalidPrice)
		}
		if p.ImageURL == "" && len(s.ImageData) == 0 {
			return e.Wrap("product "+p.ID+" has no image", e.ErrMissingFields)
		}
	}

	return nil
}

func (c *CatalogUseCase) hasDatabase() bool {
	return c.productRepo != nil
}

func sameProduct(a, b domain.Product) bool {
	return a.ID == b.ID &&
		a.Name == b.Name &&
		a.Category == b.Category &&
		a.Price.Equal(b.Price) &&
		a.Description == b.Description &&
		a.ImageURL == b.ImageURL
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/tiff":
		return ".tiff"
	default:
		return ""
	}
}
