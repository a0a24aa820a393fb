package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
)

const (
	StoreDriverRedis  = "redis"
	StoreDriverSQLite = "sqlite"
)

type Config struct {
	Http     *HTTPConfig
	Grpc     *GRPCConfig
	Db       *PGDBCfg
	Store    *StoreCfg
	Redis    *RedisCfg
	SQLite   *SQLiteCfg
	Minio    *MinIOCfg
	Backbone *BackboneCfg
	Fetcher  *FetcherCfg
	Search   *SearchCfg
	Catalog  *CatalogCfg
	Kafka    *KafkaCfg
}

type HTTPConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxUploadBytes int64
}

type GRPCConfig struct {
	Port        string
	NetworkMode string
}

type PGDBCfg struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// StoreCfg выбирает реализацию персистентного key-value хранилища.
type StoreCfg struct {
	Driver string // redis | sqlite
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SQLiteCfg struct {
	Path string
}

// MinIOCfg необязательна: при пустом MINIO_ENDPOINT ссылки s3:// не поддерживаются.
type MinIOCfg struct {
	Enabled           bool
	MinioEndpoint     string
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
	BucketName        string
}

// BackboneCfg описывает удалённую модель, вычисляющую эмбеддинги.
type BackboneCfg struct {
	URL            string
	ModelName      string
	VectorSize     int
	InputSize      int
	RequestTimeout time.Duration
	InitTimeout    time.Duration
	MaxRetries     int
}

type FetcherCfg struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBytes     int64
	UserAgent    string
}

type SearchCfg struct {
	MinSimilarity float64
	Limit         int
	Concurrency   int
}

type CatalogCfg struct {
	SnapshotTTL time.Duration
}

// KafkaCfg необязательна: при пустом KAFKA_BROKERS события не публикуются.
type KafkaCfg struct {
	Enabled           bool
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
	TopicTimeout      time.Duration
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return loadWithDB(log, db)
}

// LoadLocal загружает конфигурацию без обязательных параметров PostgreSQL.
// Используется CLI, которому база каталога нужна не для всех команд.
func LoadLocal(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		log.Warnf("postgres config is incomplete, catalog database is unavailable: %v", err)
		db = nil
	}

	return loadWithDB(log, db)
}

func loadWithDB(log logger.Logger, db *PGDBCfg) (*Config, error) {
	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	store, err := loadStoreCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	backbone, err := loadBackboneCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	fetcher, err := loadFetcherCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	catalog, err := loadCatalogCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:     http,
		Grpc:     loadGRPCConfig(),
		Db:       db,
		Store:    store,
		Redis:    redis,
		SQLite:   loadSQLiteCfg(),
		Minio:    minio,
		Backbone: backbone,
		Fetcher:  fetcher,
		Search:   search,
		Catalog:  catalog,
		Kafka:    kafka,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort           = "8080"
		defaultReadTimeout    = 15 * time.Second
		defaultWriteTimeout   = 5 * time.Minute
		defaultIdleTimeout    = 60 * time.Second
		defaultMaxUploadBytes = 10 << 20
	)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	// Поиск с большим числом промахов кэша может длиться долго, поэтому запас на запись большой.
	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	maxUpload, err := parseIntEnv("HTTP_MAX_UPLOAD_BYTES", defaultMaxUploadBytes)
	if err != nil {
		log.Errorf(err, "invalid HTTP_MAX_UPLOAD_BYTES")
		return nil, err
	}

	return &HTTPConfig{
		Port:           getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		MaxUploadBytes: int64(maxUpload),
	}, nil
}

func loadGRPCConfig() *GRPCConfig {
	const (
		defaultPort        = "8091"
		defaultNetworkMode = "tcp"
	)

	return &GRPCConfig{
		Port:        getEnvOrDefault("GRPC_PORT", defaultPort),
		NetworkMode: getEnvOrDefault("GRPC_NETWORK_MODE", defaultNetworkMode),
	}
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost           = "localhost"
		defaultPort           = "5432"
		defaultSSLMode        = "disable"
		defaultMigrationsPath = "file://db/migrations"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:           getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:           getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:           user,
		Password:       password,
		DBName:         dbName,
		SSLMode:        getEnvOrDefault("SSL_MODE", defaultSSLMode),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
	}, nil
}

func loadStoreCfg() (*StoreCfg, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverRedis))
	switch driver {
	case StoreDriverRedis, StoreDriverSQLite:
		return &StoreCfg{Driver: driver}, nil
	default:
		return nil, e.Wrap("STORE_DRIVER="+driver, e.ErrIncorrectEnvVariable)
	}
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
	)

	db, err := parseIntEnv("REDIS_DB_ID", defaultDB)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetries, err := parseIntEnv("MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	return &RedisCfg{
		Addr:         getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:     getEnv("REDIS_PASSWORD"),
		User:         getEnv("REDIS_USER"),
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}, nil
}

func loadSQLiteCfg() *SQLiteCfg {
	const defaultPath = "data/visual-search.db"

	return &SQLiteCfg{
		Path: getEnvOrDefault("SQLITE_PATH", defaultPath),
	}
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL     = false
		defaultBucketName = "product-images"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	endpoint := getEnv("MINIO_ENDPOINT")

	return &MinIOCfg{
		Enabled:           endpoint != "",
		MinioEndpoint:     endpoint,
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		BucketName:        getEnvOrDefault("MINIO_BUCKET", defaultBucketName),
	}, nil
}

func loadBackboneCfg(log logger.Logger) (*BackboneCfg, error) {
	const (
		defaultURL            = "http://ml-service:8501"
		defaultModelName      = "mobilenet_embedding"
		defaultVectorSize     = 1024
		defaultInputSize      = 224
		defaultRequestTimeout = 30 * time.Second
		defaultInitTimeout    = 2 * time.Minute
		defaultMaxRetries     = 3
	)

	vectorSize, err := parseIntEnv("VECTOR_SIZE", defaultVectorSize)
	if err != nil || vectorSize <= 0 {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, e.Wrap("VECTOR_SIZE", e.ErrIncorrectEnvVariable)
	}

	inputSize, err := parseIntEnv("MODEL_INPUT_SIZE", defaultInputSize)
	if err != nil || inputSize <= 0 {
		log.Errorf(err, "invalid MODEL_INPUT_SIZE")
		return nil, e.Wrap("MODEL_INPUT_SIZE", e.ErrIncorrectEnvVariable)
	}

	requestTimeout, err := parseDurationEnv("ML_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_REQUEST_TIMEOUT")
		return nil, err
	}

	initTimeout, err := parseDurationEnv("ML_INIT_TIMEOUT", defaultInitTimeout)
	if err != nil {
		log.Errorf(err, "invalid ML_INIT_TIMEOUT")
		return nil, err
	}

	maxRetries, err := parseIntEnv("ML_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		log.Errorf(err, "invalid ML_MAX_RETRIES")
		return nil, err
	}

	return &BackboneCfg{
		URL:            strings.TrimRight(getEnvOrDefault("ML_URL", defaultURL), "/"),
		ModelName:      getEnvOrDefault("ML_MODEL_NAME", defaultModelName),
		VectorSize:     vectorSize,
		InputSize:      inputSize,
		RequestTimeout: requestTimeout,
		InitTimeout:    initTimeout,
		MaxRetries:     maxRetries,
	}, nil
}

func loadFetcherCfg(log logger.Logger) (*FetcherCfg, error) {
	const (
		defaultTimeout      = 15 * time.Second
		defaultMaxRedirects = 5
		defaultMaxBytes     = 20 << 20
		defaultUserAgent    = "visual-search/1.0"
	)

	timeout, err := parseDurationEnv("FETCH_TIMEOUT", defaultTimeout)
	if err != nil {
		log.Errorf(err, "invalid FETCH_TIMEOUT")
		return nil, err
	}

	maxRedirects, err := parseIntEnv("FETCH_MAX_REDIRECTS", defaultMaxRedirects)
	if err != nil {
		log.Errorf(err, "invalid FETCH_MAX_REDIRECTS")
		return nil, err
	}

	maxBytes, err := parseIntEnv("FETCH_MAX_BYTES", defaultMaxBytes)
	if err != nil {
		log.Errorf(err, "invalid FETCH_MAX_BYTES")
		return nil, err
	}

	return &FetcherCfg{
		Timeout:      timeout,
		MaxRedirects: maxRedirects,
		MaxBytes:     int64(maxBytes),
		UserAgent:    getEnvOrDefault("FETCH_USER_AGENT", defaultUserAgent),
	}, nil
}

func loadSearchCfg(log logger.Logger) (*SearchCfg, error) {
	const (
		defaultMinSimilarity = 0.1
		defaultLimit         = domain.MaxSearchResults
		defaultConcurrency   = 4
	)

	minSimilarity, err := parseFloatEnv("SEARCH_MIN_SIMILARITY", defaultMinSimilarity)
	if err != nil || minSimilarity < 0 || minSimilarity > 1 {
		log.Errorf(err, "invalid SEARCH_MIN_SIMILARITY")
		return nil, e.Wrap("SEARCH_MIN_SIMILARITY", e.ErrIncorrectEnvVariable)
	}

	limit, err := parseIntEnv("SEARCH_LIMIT", defaultLimit)
	if err != nil || limit <= 0 || limit > domain.MaxSearchResults {
		log.Errorf(err, "invalid SEARCH_LIMIT")
		return nil, e.Wrap("SEARCH_LIMIT", e.ErrIncorrectEnvVariable)
	}

	concurrency, err := parseIntEnv("SEARCH_CONCURRENCY", defaultConcurrency)
	if err != nil || concurrency <= 0 {
		log.Errorf(err, "invalid SEARCH_CONCURRENCY")
		return nil, e.Wrap("SEARCH_CONCURRENCY", e.ErrIncorrectEnvVariable)
	}

	return &SearchCfg{
		MinSimilarity: minSimilarity,
		Limit:         limit,
		Concurrency:   concurrency,
	}, nil
}

func loadCatalogCfg(log logger.Logger) (*CatalogCfg, error) {
	const defaultSnapshotTTL = 5 * time.Minute

	ttl, err := parseDurationEnv("CATALOG_SNAPSHOT_TTL", defaultSnapshotTTL)
	if err != nil {
		log.Errorf(err, "invalid CATALOG_SNAPSHOT_TTL")
		return nil, err
	}

	return &CatalogCfg{SnapshotTTL: ttl}, nil
}

func loadKafkaCfg(log logger.Logger) (*KafkaCfg, error) {
	const (
		defaultTopic             = "feature-events"
		defaultNetworkMode       = "tcp"
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultTopicTimeout      = 10 * time.Second
	)

	brokerStr := getEnv("KAFKA_BROKERS")
	var brokers []string
	if brokerStr != "" {
		brokers = strings.Split(brokerStr, ",")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		log.Errorf(err, "invalid KAFKA_PARTITIONS")
		return nil, err
	}

	replicationFactor, err := parseIntEnv("KAFKA_REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		log.Errorf(err, "invalid KAFKA_REPLICATION_FACTOR")
		return nil, err
	}

	topicTimeout, err := parseDurationEnv("KAFKA_TOPIC_TIMEOUT", defaultTopicTimeout)
	if err != nil {
		log.Errorf(err, "invalid KAFKA_TOPIC_TIMEOUT")
		return nil, err
	}

	return &KafkaCfg{
		Enabled:           len(brokers) > 0,
		Brokers:           brokers,
		Topic:             getEnvOrDefault("KAFKA_TOPIC", defaultTopic),
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		TopicTimeout:      topicTimeout,
	}, nil
}

// DSN возвращает строку подключения к PostgreSQL.
func (c *PGDBCfg) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return intValue, nil
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	floatValue, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue, e.Wrap(key, e.ErrIncorrectEnvVariable)
	}

	return floatValue, nil
}
