package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storefront/internal/handler"
	"github.com/sakif/storefront/internal/model"
)

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func TestCatalogHandler(t *testing.T) {
	app := newTestApp(t)

	t.Run("categories", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/categories", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"men's clothing", "jewelery", "electronics"}, decode[[]string](t, rr))
	})

	t.Run("products by category", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/categories/"+url.PathEscape("men's clothing")+"/products", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]model.Product](t, rr), 2)
	})

	t.Run("product", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/products/5", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Ring", decode[model.Product](t, rr).Title)
	})

	t.Run("unknown product", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/products/404", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not_found", decode[handler.ErrorResponse](t, rr).Error)
	})

	t.Run("recent default", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/products/recent", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]model.Product](t, rr), 4)
	})

	t.Run("recent with limit", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/products/recent?limit=2", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Len(t, decode[[]model.Product](t, rr), 2)
	})

	t.Run("recent with bad limit", func(t *testing.T) {
		rr := app.do(t, http.MethodGet, "/api/catalog/products/recent?limit=zero", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unexpected error is a generic 500", func(t *testing.T) {
		app.catalog.ReturnErr = errors.New("dial tcp: secret-host:443")
		defer func() { app.catalog.ReturnErr = nil }()

		rr := app.do(t, http.MethodGet, "/api/catalog/categories", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "An internal error occurred", decode[handler.ErrorResponse](t, rr).Message)
	})
}
