package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	maxFormMemory = 32 << 20
	formOverhead  = 1 << 20
	maxJSONBody   = 64 << 10
)

type SearchHandler struct {
	searchUC       usecase.SearchUC
	maxUploadBytes int64
	logger         logger.Logger
}

func NewSearchHandler(searchUC usecase.SearchUC, maxUploadBytes int64, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUC: searchUC, maxUploadBytes: maxUploadBytes, logger: logger}
}

// searchByImage ищет товары, похожие на загруженное изображение.
// Поля формы: image (файл), min_similarity, use_color.
func (h *SearchHandler) searchByImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	if err := ensureMultipartForm(r, maxFormMemory); err != nil {
		h.writeError(w, r, err)
		return
	}

	minSimilarity, err := parseMinSimilarity(r.FormValue("min_similarity"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	useColor, err := parseUseColor(r.FormValue("use_color"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		h.writeError(w, r, e.Wrap("image", e.ErrMissingFields))
		return
	}

	data, err := readFile(files[0], h.maxUploadBytes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.search(r.Context(), useColor, minSimilarity, func(ctx context.Context) (*domain.ImageDescriptor, error) {
		if useColor {
			return h.searchUC.DescribeImage(ctx, data)
		}

		vector, err := h.searchUC.ExtractFeatures(ctx, data)
		if err != nil {
			return nil, err
		}
		return &domain.ImageDescriptor{Features: vector}, nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res.Results))
}

// searchByURL ищет товары, похожие на изображение по ссылке http(s):// или s3://.
func (h *SearchHandler) searchByURL(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req searchURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, e.Join(e.ErrStatusBadRequest, err))
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		h.writeError(w, r, e.Wrap("url", e.ErrMissingFields))
		return
	}

	res, err := h.search(r.Context(), req.UseColor, req.MinSimilarity, func(ctx context.Context) (*domain.ImageDescriptor, error) {
		if req.UseColor {
			return h.searchUC.DescribeImageFromURL(ctx, req.URL)
		}

		vector, err := h.searchUC.ExtractFeaturesFromURL(ctx, req.URL)
		if err != nil {
			return nil, err
		}
		return &domain.ImageDescriptor{Features: vector}, nil
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res.Results))
}

func (h *SearchHandler) search(
	ctx context.Context,
	useColor bool,
	minSimilarity *float64,
	describe func(ctx context.Context) (*domain.ImageDescriptor, error),
) (*usecase.FindSimilarRes, error) {
	descriptor, err := describe(ctx)
	if err != nil {
		return nil, err
	}

	var histogram *domain.ColorHistogram
	if useColor {
		histogram = descriptor.Histogram
	}

	res, err := h.searchUC.FindSimilarProducts(ctx, usecase.NewFindSimilarReq(descriptor.Features, histogram, minSimilarity))
	if err != nil {
		return nil, err
	}

	h.logger.Debugf("search done: results=%d scanned=%d cached=%d computed=%d skipped=%d",
		len(res.Results), res.Scanned, res.Cached, res.Computed, res.Skipped)

	return res, nil
}

func (h *SearchHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := ToHTTPResponse(err)
	if code >= http.StatusInternalServerError {
		h.logger.Errorf(err, "%d %s %s", code, r.Method, r.URL.Path)
	} else {
		h.logger.Warnf("%d %s %s: %v", code, r.Method, r.URL.Path, err)
	}

	WriteError(w, err)
}
