package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/jimlawless/whereami"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// ToHTTPResponse сопоставляет ошибку таксономии со статусом ответа и сообщением для пользователя.
func ToHTTPResponse(err error) (int, string) {
	msg := e.UserMessage(err)

	switch {
	case errors.Is(err, e.ErrStatusBadRequest),
		errors.Is(err, e.ErrExpectedMultipart),
		errors.Is(err, e.ErrMissingFields),
		errors.Is(err, e.ErrInvalidMinSimilarity),
		errors.Is(err, e.ErrInvalidURL),
		errors.Is(err, e.ErrEmptyImage),
		errors.Is(err, e.ErrEmptyVectors),
		errors.Is(err, e.ErrObjectStorageAbsent):
		return http.StatusBadRequest, msg
	case errors.Is(err, e.ErrFileTooLarge),
		errors.Is(err, e.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge, msg
	case errors.Is(err, e.ErrUnsupportedFormat),
		errors.Is(err, e.ErrImageDecode):
		return http.StatusUnprocessableEntity, msg
	case errors.Is(err, e.ErrModelNotReady):
		return http.StatusServiceUnavailable, msg
	case errors.Is(err, e.ErrFetchTimeout):
		return http.StatusGatewayTimeout, msg
	case errors.Is(err, e.ErrHostUnresolvable),
		errors.Is(err, e.ErrConnectionRefused),
		errors.Is(err, e.ErrImageNotFound),
		errors.Is(err, e.ErrImageForbidden),
		errors.Is(err, e.ErrFetchFailed),
		errors.Is(err, e.ErrModelInference):
		return http.StatusBadGateway, msg
	default:
		return http.StatusInternalServerError, msg
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type productResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Price       string `json:"price"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url"`
}

type searchResultResponse struct {
	Product         productResponse `json:"product"`
	Similarity      float64         `json:"similarity"`
	MatchPercentage int             `json:"match_percentage"`
}

type searchResponse struct {
	Results []searchResultResponse `json:"results"`
	Count   int                    `json:"count"`
}

type productsResponse struct {
	Products []productResponse `json:"products"`
	Count    int               `json:"count"`
}

type searchURLRequest struct {
	URL           string   `json:"url"`
	MinSimilarity *float64 `json:"min_similarity"`
	UseColor      bool     `json:"use_color"`
}

func toProductResponse(p *domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}

func toProductsResponse(products []domain.Product) *productsResponse {
	res := &productsResponse{Products: make([]productResponse, len(products)), Count: len(products)}
	for i := range products {
		res.Products[i] = toProductResponse(&products[i])
	}

	return res
}

func toSearchResponse(results []domain.SearchResult) *searchResponse {
	res := &searchResponse{Results: make([]searchResultResponse, len(results)), Count: len(results)}
	for i := range results {
		res.Results[i] = searchResultResponse{
			Product:         toProductResponse(&results[i].Product),
			Similarity:      results[i].Similarity,
			MatchPercentage: results[i].MatchPercentage,
		}
	}

	return res
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}
		return e.Join(e.ErrStatusBadRequest, err)
	}

	return nil
}

// parseMinSimilarity возвращает nil для пустого значения: тогда действует порог из конфигурации.
func parseMinSimilarity(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, e.Wrap("min_similarity="+s, e.ErrInvalidMinSimilarity)
	}

	return &v, nil
}

func parseUseColor(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, e.Wrap("use_color="+s, e.ErrStatusBadRequest)
	}

	return v, nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if fh.Size > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}
	if len(data) == 0 {
		return nil, e.Wrap(fh.Filename, e.ErrEmptyImage)
	}

	return data, nil
}
