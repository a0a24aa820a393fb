// Package fetcher загружает исходные изображения товаров по ссылке и классифицирует сетевые сбои.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/infrastructure/imaging"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// ObjectSource читает объекты из объектного хранилища (ссылки s3://bucket/key).
type ObjectSource interface {
	Get(ctx context.Context, bucket, key string, maxBytes int64) ([]byte, error)
}

// Fetcher разрешает ссылку на изображение в его байты.
type Fetcher struct {
	client  *http.Client
	objects ObjectSource
	cfg     *cfg.FetcherCfg
	logger  logger.Logger
}

// New создаёт Fetcher. objects может быть nil, тогда ссылки s3:// отклоняются.
func New(cfg *cfg.FetcherCfg, objects ObjectSource, logger logger.Logger) *Fetcher {
	client := &http.Client{
		Timeout: cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{
		client:  client,
		objects: objects,
		cfg:     cfg,
		logger:  logger,
	}
}

// Fetch загружает изображение и проверяет, что его формат поддерживается.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	const op = "Fetcher.Fetch"

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, e.Wrap(op, e.Join(e.ErrInvalidURL, err))
	}

	var data []byte
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return nil, e.Wrap(op, e.ErrInvalidURL)
		}
		data, err = f.fetchHTTP(ctx, u)
	case "s3":
		data, err = f.fetchObject(ctx, u)
	default:
		return nil, e.Wrap(op, fmt.Errorf("%w: scheme %q", e.ErrInvalidURL, u.Scheme))
	}
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := validate(data); err != nil {
		return nil, e.Wrap(op, err)
	}

	f.logger.Debugf("fetched %d bytes from %s", len(data), u.Redacted())

	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, e.Join(e.ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, e.ErrImageNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, e.ErrImageForbidden
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, e.Join(e.ErrFetchFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, e.ErrImageTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, classify(err)
	}

	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, e.ErrImageTooLarge
	}

	return data, nil
}

func (f *Fetcher) fetchObject(ctx context.Context, u *url.URL) ([]byte, error) {
	if f.objects == nil {
		return nil, e.ErrObjectStorageAbsent
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, e.ErrInvalidURL
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	data, err := f.objects.Get(ctx, bucket, key, f.cfg.MaxBytes)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, e.Join(e.ErrFetchTimeout, err)
		}
		return nil, err
	}

	return data, nil
}

// classify переводит ошибку транспорта в таксономию ошибок загрузки.
func classify(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return e.Join(e.ErrHostUnresolvable, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return e.Join(e.ErrConnectionRefused, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return e.Join(e.ErrFetchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return e.Join(e.ErrFetchTimeout, err)
	}

	return e.Join(e.ErrFetchFailed, err)
}

// validate проверяет, что содержимое — изображение разрешённого формата.
func validate(data []byte) error {
	if len(data) == 0 {
		return e.ErrEmptyImage
	}

	format, err := imaging.DetectFormat(data)
	if err != nil {
		return e.Join(e.ErrUnsupportedFormat, err)
	}

	if !format.IsSupported() {
		return fmt.Errorf("%w: %s", e.ErrUnsupportedFormat, format)
	}

	return nil
}
