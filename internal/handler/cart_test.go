package handler_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/handler"
)

func TestCartHandler_AnonymousIsRejected(t *testing.T) {
	app := newTestApp(t)

	rr := app.do(t, http.MethodPost, "/api/cart/items", `{"productId":2}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, "unauthorized", body.Error)
	assert.Equal(t, "Please log in to add items to cart", body.Message)
	assert.Zero(t, app.catalog.Lookups, "anonymous add must not reach the catalog")

	rr = app.do(t, http.MethodDelete, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Please log in to manage your cart", decode[handler.ErrorResponse](t, rr).Message)

	rr = app.do(t, http.MethodGet, "/api/cart", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cart := decode[cartBody](t, rr)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.Summary.IsEmpty)
}

func TestCartHandler_Lifecycle(t *testing.T) {
	app := newTestApp(t)
	cookie := registerAnn(t, app)

	// add twice → one line, quantity 2
	for range 2 {
		rr := app.do(t, http.MethodPost, "/api/cart/items", `{"productId":2}`, cookie)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}
	rr := app.do(t, http.MethodGet, "/api/cart", "", cookie)
	cart := decode[cartBody](t, rr)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "$44.60", cart.Summary.FormattedTotal)

	// snapshot add, with quantity
	rr = app.do(t, http.MethodPost, "/api/cart/items",
		`{"product":{"id":77,"title":"Mug","price":5,"category":"home"},"quantity":3}`, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, decode[cartBody](t, rr).Summary.TotalItems)

	rr = app.do(t, http.MethodPost, "/api/cart/items/77/increase", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = app.do(t, http.MethodPut, "/api/cart/items/2", `{"quantity":0}`, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	cart = decode[cartBody](t, rr)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 77, cart.Items[0].ID)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	rr = app.do(t, http.MethodDelete, "/api/cart", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[cartBody](t, rr).Summary.IsEmpty)
}

func TestCartHandler_Reorder(t *testing.T) {
	app := newTestApp(t)
	cookie := registerAnn(t, app)
	for _, id := range []int{1, 2, 5} {
		rr := app.do(t, http.MethodPost, "/api/cart/items", fmt.Sprintf(`{"productId":%d}`, id), cookie)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	cart := decode[cartBody](t, app.do(t, http.MethodGet, "/api/cart", "", cookie))
	items := cart.Items
	items[0], items[2] = items[2], items[0]

	body, err := jsonString(map[string]any{"items": items})
	require.NoError(t, err)
	rr := app.do(t, http.MethodPut, "/api/cart/order", body, cookie)
	require.Equal(t, http.StatusOK, rr.Code)

	got := decode[cartBody](t, rr).Items
	assert.Equal(t, []int{5, 2, 1}, []int{got[0].ID, got[1].ID, got[2].ID})
}

func TestCartHandler_DecreaseRemovesAtOne(t *testing.T) {
	app := newTestApp(t)
	cookie := registerAnn(t, app)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/cart/items", `{"productId":5}`, cookie).Code)

	rr := app.do(t, http.MethodPost, "/api/cart/items/5/decrease", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[cartBody](t, rr).Items)
}

func TestCartHandler_StaleTokenAfterLogout(t *testing.T) {
	app := newTestApp(t)
	cookie := registerAnn(t, app)
	app.do(t, http.MethodPost, "/api/session/logout", "", cookie)

	rr := app.do(t, http.MethodPost, "/api/cart/items", `{"productId":1}`, cookie)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCartHandler_Errors(t *testing.T) {
	app := newTestApp(t)
	cookie := registerAnn(t, app)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown product", http.MethodPost, "/api/cart/items", `{"productId":404}`, http.StatusNotFound},
		{"missing product id", http.MethodPost, "/api/cart/items", `{}`, http.StatusBadRequest},
		{"bad quantity", http.MethodPost, "/api/cart/items", `{"productId":1,"quantity":-2}`, http.StatusBadRequest},
		{"bad path id", http.MethodPut, "/api/cart/items/abc", `{"quantity":1}`, http.StatusBadRequest},
		{"bad body", http.MethodPut, "/api/cart/items/1", `{"quantity":`, http.StatusBadRequest},
		{"snapshot without id", http.MethodPost, "/api/cart/items", `{"product":{"title":"Mug","price":5}}`, http.StatusBadRequest},
		{"snapshot with negative id", http.MethodPost, "/api/cart/items", `{"product":{"id":-3,"title":"Mug","price":5}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.do(t, tt.method, tt.path, tt.body, cookie)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	cart := decode[cartBody](t, app.do(t, http.MethodGet, "/api/cart", "", cookie))
	assert.Empty(t, cart.Items, "rejected adds must not create lines")

	t.Run("catalog down", func(t *testing.T) {
		app.catalog.ReturnErr = apperror.Upstream("Catalog is unavailable", nil)
		defer func() { app.catalog.ReturnErr = nil }()

		rr := app.do(t, http.MethodPost, "/api/cart/items", `{"productId":1}`, cookie)
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}
