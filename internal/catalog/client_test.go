package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/storefront/internal/apperror"
)

const productJSON = `{"id":1,"title":"Backpack","price":109.95,"description":"Fits 15in laptops","category":"men's clothing","image":"https://img/1.jpg","rating":{"rate":3.9,"count":120}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(srv.URL+"/", time.Second, logger)
}

func TestCategories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/categories", r.URL.Path)
		fmt.Fprint(w, `["electronics","jewelery"]`)
	})

	got, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"electronics", "jewelery"}, got)
}

func TestProductsByCategory_EscapesName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/category/men's clothing", r.URL.Path)
		fmt.Fprintf(w, `[%s]`, productJSON)
	})

	got, err := c.ProductsByCategory(context.Background(), "men's clothing")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Backpack", got[0].Title)
	assert.Equal(t, 120, got[0].Rating.Count)
}

func TestProductsByCategory_EmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	got, err := c.ProductsByCategory(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestProduct(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"found", http.StatusOK, productJSON, nil},
		{"404", http.StatusNotFound, `{"message":"not found"}`, apperror.ErrNotFound},
		{"empty body", http.StatusOK, "", apperror.ErrNotFound},
		{"null body", http.StatusOK, "null", apperror.ErrNotFound},
		{"server error", http.StatusInternalServerError, "", apperror.ErrUpstream},
		{"garbage", http.StatusOK, "<html>", apperror.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/products/1", r.URL.Path)
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})

			p, err := c.Product(context.Background(), 1)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, p.ID)
			assert.InDelta(t, 109.95, p.Price, 1e-9)
		})
	}
}

func TestRecentProducts(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		wantQuery string
	}{
		{"default limit", 0, "4"},
		{"explicit limit", 2, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/products", r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.Query().Get("limit"))
				// ignore the limit, like some mirrors do
				fmt.Fprintf(w, `[%s,%s,%s,%s,%s]`, productJSON, productJSON, productJSON, productJSON, productJSON)
			})

			got, err := c.RecentProducts(context.Background(), tt.limit)
			require.NoError(t, err)
			want := tt.limit
			if want == 0 {
				want = DefaultRecentLimit
			}
			assert.Len(t, got, want)
		})
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, time.Second, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))

	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUpstream)
}
