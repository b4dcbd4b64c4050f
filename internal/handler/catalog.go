package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
)

// Catalog is the read-only product source.
type Catalog interface {
	Categories(ctx context.Context) ([]string, error)
	ProductsByCategory(ctx context.Context, category string) ([]model.Product, error)
	Product(ctx context.Context, id int) (*model.Product, error)
	RecentProducts(ctx context.Context, limit int) ([]model.Product, error)
}

// CatalogHandler proxies catalog reads for the storefront pages.
type CatalogHandler struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewCatalogHandler(catalog Catalog, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// HandleCategories: GET /api/catalog/categories
func (h *CatalogHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// HandleByCategory: GET /api/catalog/categories/{category}/products
func (h *CatalogHandler) HandleByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ProductsByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// HandleProduct: GET /api/catalog/products/{id}
func (h *CatalogHandler) HandleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		writeError(w, apperror.ValidationFailed("id", "Invalid product id"))
		return
	}

	product, err := h.catalog.Product(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// HandleRecent: GET /api/catalog/products/recent?limit=4
func (h *CatalogHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be between 1 and 50"))
			return
		}
		limit = n
	}

	products, err := h.catalog.RecentProducts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}
