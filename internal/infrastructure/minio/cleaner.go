package minio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	cleanupTimeout  = 30 * time.Second
	cleanupAttempts = 3
)

// ObjectDeleter удаляет объект из хранилища по ключу.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Cleaner удаляет в фоне изображения, загруженные для неудавшейся загрузки каталога.
type Cleaner struct {
	objects     ObjectDeleter
	logger      logger.Logger
	wg          sync.WaitGroup
	shutdownCtx context.Context
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewCleaner создаёт очистку. Отмена shutdownCtx прерывает незавершённые удаления.
func NewCleaner(objects ObjectDeleter, logger logger.Logger, shutdownCtx context.Context) *Cleaner {
	return &Cleaner{
		objects:     objects,
		logger:      logger,
		shutdownCtx: shutdownCtx,
		baseBackoff: time.Second,
		maxBackoff:  4 * time.Second,
	}
}

// CleanupImages запускает фоновую очистку указанных ключей.
func (c *Cleaner) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}

	c.wg.Add(1)
	go c.cleanupKeys(keys)
}

func (c *Cleaner) cleanupKeys(keys []string) {
	defer c.wg.Done()
	const op = "Cleaner.cleanupKeys"

	ctx, cancel := context.WithTimeout(c.shutdownCtx, cleanupTimeout)
	defer cancel()

	c.logger.Infof("%s: removing %d uploaded images", op, len(keys))

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			err := c.objects.Delete(ctx, key)
			if err == nil {
				break
			}

			if attempt == cleanupAttempts-1 {
				c.logger.Warnf("%s: failed to remove key=%s: %v", op, key, err)
				break
			}

			if err := jitter.Sleep(ctx, jitter.ExponentialBackoff(c.baseBackoff, c.maxBackoff, attempt, jitter.DefaultJitter)); err != nil {
				c.logger.Warnf("%s: interrupted by shutdown, key=%s", op, key)
				return
			}
		}
	}
}

// WaitForCleanup ожидает завершения фоновых удалений с учётом таймаута завершения приложения.
func (c *Cleaner) WaitForCleanup(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("image cleanup timeout during shutdown: %w", ctx.Err())
	}
}
