package http

import (
	"net/http"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type ProductHandler struct {
	catalogUC usecase.CatalogUC
	logger    logger.Logger
}

func NewProductHandler(catalogUC usecase.CatalogUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{catalogUC: catalogUC, logger: logger}
}

// listProducts возвращает каталог. Параметр category фильтрует без учёта регистра.
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []domain.Product
		err      error
	)

	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		products, err = p.catalogUC.ProductsByCategory(r.Context(), category)
	} else {
		products, err = p.catalogUC.ListProducts(r.Context())
	}
	if err != nil {
		p.logger.Errorf(err, "%s %s", r.Method, r.URL.Path)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductsResponse(products))
}
