package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// Scheme — схема локаторов изображений, хранящихся в объектном хранилище.
const Scheme = "s3"

// ImageRepo реализует репозиторий изображений товаров поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Locator возвращает ссылку вида s3://bucket/key для объекта в бакете по умолчанию.
func (i *ImageRepo) Locator(key string) string {
	return fmt.Sprintf("%s://%s/%s", Scheme, i.cfg.BucketName, key)
}

// Upload загружает изображение в MinIO и возвращает его локатор.
func (i *ImageRepo) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	reader := bytes.NewReader(data)

	info, err := i.mc.PutObject(ctx, i.cfg.BucketName, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", e.Wrap(whereami.WhereAmI(), err)
	}

	return i.Locator(info.Key), nil
}

// Get читает объект целиком, но не более maxBytes байт.
func (i *ImageRepo) Get(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error) {
	obj, err := i.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classify(err))
	}
	defer obj.Close()

	// Ошибки доступа MinIO возвращает только при первом чтении объекта.
	data, err := io.ReadAll(io.LimitReader(obj, maxBytes+1))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classify(err))
	}

	if int64(len(data)) > maxBytes {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageTooLarge)
	}

	return data, nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func classify(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return e.Join(e.ErrImageNotFound, err)
	case "AccessDenied":
		return e.Join(e.ErrImageForbidden, err)
	default:
		return e.Join(e.ErrFetchFailed, err)
	}
}
