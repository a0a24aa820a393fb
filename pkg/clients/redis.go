package clients

import (
	"context"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/jimlawless/whereami"
	r "github.com/redis/go-redis/v9"
)

// redisClientName — имя соединения в CLIENT LIST.
const redisClientName = "visual-search-features"

const (
	redisWaitBase = 100 * time.Millisecond
	redisWaitMax  = 2 * time.Second
)

// RedisClient — соединение с Redis, где лежит кэш признаков.
type RedisClient struct {
	Client *r.Client
	addr   string
	logger logger.Logger
}

func NewRedisClient(cfg *cfg.RedisCfg, logger logger.Logger) *RedisClient {
	client := r.NewClient(&r.Options{
		Addr:         cfg.Addr,
		ClientName:   redisClientName,
		Username:     cfg.User,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		ContextTimeoutEnabled: true,
	})

	return &RedisClient{
		Client: client,
		addr:   cfg.Addr,
		logger: logger,
	}
}

// Ping ждёт готовности Redis, повторяя PING с экспоненциальной задержкой, пока не истечёт ctx.
func (c *RedisClient) Ping(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := c.Client.Ping(ctx).Err()
		if err == nil {
			if attempt > 0 {
				c.logger.Infof("redis %s is up after %d attempts", c.addr, attempt+1)
			}
			return nil
		}

		wait := jitter.ExponentialBackoff(redisWaitBase, redisWaitMax, attempt, jitter.DefaultJitter)
		c.logger.Warnf("redis %s is not ready, retrying in %v: %v", c.addr, wait, err)

		if sleepErr := jitter.Sleep(ctx, wait); sleepErr != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}
}

func (c *RedisClient) Close() error {
	return c.Client.Close()
}
