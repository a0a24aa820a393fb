package http

import (
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(searchUC usecase.SearchUC, catalogUC usecase.CatalogUC, cfg *cfg.HTTPConfig) {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerSearchRoutes(v1, NewSearchHandler(searchUC, cfg.MaxUploadBytes, r.logger))
		registerProductRoutes(v1, NewProductHandler(catalogUC, r.logger))
	})
}

func registerSearchRoutes(router chi.Router, h *SearchHandler) {
	router.Route("/search", func(sr chi.Router) {
		sr.Post("/", h.searchByImage)
		sr.Post("/url", h.searchByURL)
	})
}

func registerProductRoutes(router chi.Router, h *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", h.listProducts)
	})
}
