package app

import (
	"context"
	"time"

	config "github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/color"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/embedding"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/fetcher"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/visual-search/internal/infrastructure/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/kv"
	s3Repo "github.com/DRSN-tech/visual-search/internal/repository/minio"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb"
	redisRepo "github.com/DRSN-tech/visual-search/internal/repository/redis"
	"github.com/DRSN-tech/visual-search/internal/repository/sqlite"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/clients"
	"github.com/DRSN-tech/visual-search/pkg/closer"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/postgres"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jimlawless/whereami"
)

// Container собирает зависимости сценариев поиска и каталога.
// Необязательные подсистемы (PostgreSQL, MinIO, Kafka) подключаются, только если настроены.
type Container struct {
	SearchUC  *usecase.SearchUseCase
	CatalogUC *usecase.CatalogUseCase
	Backbone  *embedding.ServingBackbone
	Closer    *closer.Closer
	Config    *config.Config
}

// NewContainer создаёт все зависимости. Модель не инициализируется: это делает вызывающий.
// При ошибке уже открытые ресурсы закрываются.
func NewContainer(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *Container, err error) {
	c := &Container{Closer: closer.NewCloser(0), Config: cfg}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if closeErr := c.Closer.Close(closeCtx); closeErr != nil {
				log.Warnf("cleanup after failed start: %v", closeErr)
			}
		}
	}()

	store, err := c.initStore(ctx, cfg, log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// Интерфейсы остаются nil, если подсистема не настроена.
	var (
		productRepo  usecase.ProductRepository
		categoryRepo usecase.CategoryRepository
		txRunner     usecase.TxRunner
		imageRepo    usecase.ImageRepository
		imageCleaner usecase.ImageCleaner
		objects      fetcher.ObjectSource
		publisher    usecase.EventPublisher = kafka.NopPublisher{}
	)

	if cfg.Db != nil {
		db, err := initPGDB(ctx, log, cfg.Db)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Closer.AddSimple("postgres", func() error {
			db.Close()
			return nil
		})

		productRepo = pgdb.NewProductRepo(db.Pool)
		categoryRepo = pgdb.NewCategoryRepo(db.Pool)
		txRunner = tr.NewRunner(db.Pool)
	} else {
		log.Warnf("postgres is not configured, catalog snapshot is the source of truth")
	}

	if cfg.Minio.Enabled {
		repo, err := initMinIO(ctx, cfg.Minio)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		imageRepo = repo
		objects = repo

		cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
		cleaner := minioInfra.NewCleaner(repo, log, cleanupCtx)
		c.Closer.Add("image cleanup", func(ctx context.Context) error {
			defer cancelCleanup()
			return cleaner.WaitForCleanup(ctx)
		})
		imageCleaner = cleaner
	} else {
		log.Infof("minio is not configured, s3:// image links are disabled")
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(log, cfg.Kafka)
		if err := producer.EnsureTopic(cfg.Kafka.TopicTimeout); err != nil {
			log.Warnf("failed to ensure kafka topic %s: %v", cfg.Kafka.Topic, err)
		}
		c.Closer.AddSimple("kafka producer", producer.Close)
		publisher = producer
	}

	c.Backbone = embedding.NewServingBackbone(cfg.Backbone, log)
	c.Closer.AddSimple("backbone", c.Backbone.Close)

	extractor := embedding.NewExtractor(c.Backbone, color.NewDescriptor(color.DefaultSize, log), cfg.Backbone.InputSize, log)
	imageFetcher := fetcher.New(cfg.Fetcher, objects, log)

	c.CatalogUC = usecase.NewCatalogUC(
		kv.NewCatalogRepo(store),
		productRepo,
		categoryRepo,
		imageRepo,
		imageCleaner,
		txRunner,
		cfg.Catalog,
		log,
	)

	c.SearchUC = usecase.NewSearchUC(
		c.CatalogUC,
		kv.NewFeatureRepo(store, log),
		extractor,
		imageFetcher,
		publisher,
		cfg.Search,
		log,
	)

	return c, nil
}

func (c *Container) initStore(ctx context.Context, cfg *config.Config, log logger.Logger) (kv.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		c.Closer.AddSimple("sqlite", store.Close)
		log.Infof("key-value store: sqlite %s", cfg.SQLite.Path)
		return store, nil
	default:
		redisClient := clients.NewRedisClient(cfg.Redis, log)
		c.Closer.AddSimple("redis", redisClient.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		log.Infof("key-value store: redis %s", cfg.Redis.Addr)
		return redisRepo.NewStore(redisClient, log), nil
	}
}

func initPGDB(ctx context.Context, log logger.Logger, cfg *config.PGDBCfg) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg)
	if err != nil {
		log.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(log); err != nil {
		db.Close()
		log.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		log.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

func initMinIO(ctx context.Context, cfg *config.MinIOCfg) (*s3Repo.ImageRepo, error) {
	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minioCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.BucketName); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return s3Repo.NewImageRepo(minioClient, cfg), nil
}
