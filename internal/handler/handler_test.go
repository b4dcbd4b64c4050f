package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/handler"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository/memory"
	"github.com/sakif/storefront/internal/service"
)

// MockCatalog serves a fixed product list without touching the network.
type MockCatalog struct {
	Products  []model.Product
	ReturnErr error
	Lookups   int
}

func (m *MockCatalog) Categories(context.Context) ([]string, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	seen := map[string]bool{}
	out := []string{}
	for _, p := range m.Products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (m *MockCatalog) ProductsByCategory(_ context.Context, category string) ([]model.Product, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	out := []model.Product{}
	for _, p := range m.Products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockCatalog) Product(_ context.Context, id int) (*model.Product, error) {
	m.Lookups++
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	for _, p := range m.Products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, apperror.NotFound("product", strconv.Itoa(id))
}

func (m *MockCatalog) RecentProducts(_ context.Context, limit int) ([]model.Product, error) {
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	if limit < 1 {
		limit = 4
	}
	if limit > len(m.Products) {
		limit = len(m.Products)
	}
	return m.Products[:limit], nil
}

var products = []model.Product{
	{ID: 1, Title: "Backpack", Price: 109.95, Category: "men's clothing"},
	{ID: 2, Title: "T-Shirt", Price: 22.30, Category: "men's clothing"},
	{ID: 5, Title: "Ring", Price: 695, Category: "jewelery"},
	{ID: 9, Title: "Hard Drive", Price: 64, Category: "electronics"},
	{ID: 10, Title: "SSD", Price: 109, Category: "electronics"},
}

type testApp struct {
	router  http.Handler
	session *service.SessionManager
	catalog *MockCatalog
	tokens  *auth.TokenService
}

// newTestApp wires the real services over an in-memory store, mirroring the
// server's routes.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store := memory.New()

	tokens, err := auth.NewTokenService("test-secret-that-is-long-enough", 0)
	require.NoError(t, err)

	registry := service.NewAccountRegistry(store, nil, logger)
	cart := service.NewCartStore(store, logger)
	session := service.NewSessionManager(context.Background(), registry, cart, store, logger)
	catalog := &MockCatalog{Products: products}

	sh := handler.NewSessionHandler(session, tokens, logger)
	ch := handler.NewCartHandler(cart, catalog, logger)
	kh := handler.NewCatalogHandler(catalog, logger)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))
	r.Get("/api/session", sh.HandleGet)
	r.Post("/api/session/register", sh.HandleRegister)
	r.Post("/api/session/login", sh.HandleLogin)
	r.Post("/api/session/logout", sh.HandleLogout)
	r.Get("/api/cart", ch.HandleGet)
	r.Delete("/api/cart", ch.HandleClear)
	r.Post("/api/cart/items", ch.HandleAdd)
	r.Put("/api/cart/items/{productID}", ch.HandleUpdate)
	r.Delete("/api/cart/items/{productID}", ch.HandleRemove)
	r.Post("/api/cart/items/{productID}/increase", ch.HandleIncrease)
	r.Post("/api/cart/items/{productID}/decrease", ch.HandleDecrease)
	r.Put("/api/cart/order", ch.HandleReorder)
	r.Get("/api/catalog/categories", kh.HandleCategories)
	r.Get("/api/catalog/categories/{category}/products", kh.HandleByCategory)
	r.Get("/api/catalog/products/recent", kh.HandleRecent)
	r.Get("/api/catalog/products/{id}", kh.HandleProduct)

	return &testApp{router: r, session: session, catalog: catalog, tokens: tokens}
}

func (a *testApp) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func tokenCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("response has no %q cookie", auth.CookieName)
	return nil
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

const annJSON = `{"firstName":"Ann","lastName":"Lee","username":"ann","email":"a@x.com","password":"secret1"}`

type cartBody struct {
	Items   []model.CartLine  `json:"items"`
	Summary model.CartSummary `json:"summary"`
}

func registerAnn(t *testing.T, app *testApp) *http.Cookie {
	t.Helper()
	rr := app.do(t, http.MethodPost, "/api/session/register", annJSON)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	return tokenCookie(t, rr)
}
