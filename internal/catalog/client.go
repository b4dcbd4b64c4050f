// Package catalog is the read-only gateway to the product catalog service.
// It speaks the fakestoreapi.com REST shape.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
)

const (
	DefaultBaseURL     = "https://fakestoreapi.com"
	DefaultTimeout     = 10 * time.Second
	DefaultRecentLimit = 4

	// maxBody caps how much of a response we are willing to read.
	maxBody = 4 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client for baseURL. A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Categories lists the catalog's category names.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if _, err := c.get(ctx, "/products/categories", &categories); err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// ProductsByCategory lists the products of one category. An unknown category
// is an empty list, not an error.
func (c *Client) ProductsByCategory(ctx context.Context, category string) ([]model.Product, error) {
	var products []model.Product
	if _, err := c.get(ctx, "/products/category/"+url.PathEscape(category), &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// Product fetches one product. The upstream answers an unknown id with either
// a 404 or a 200 and an empty body; both are apperror.ErrNotFound.
func (c *Client) Product(ctx context.Context, id int) (*model.Product, error) {
	var p *model.Product
	found, err := c.get(ctx, "/products/"+strconv.Itoa(id), &p)
	if err != nil {
		return nil, err
	}
	if !found || p == nil {
		return nil, apperror.NotFound("product", strconv.Itoa(id))
	}
	return p, nil
}

// RecentProducts returns the first limit products. limit < 1 means
// DefaultRecentLimit.
func (c *Client) RecentProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if limit < 1 {
		limit = DefaultRecentLimit
	}
	var products []model.Product
	if _, err := c.get(ctx, "/products?limit="+strconv.Itoa(limit), &products); err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	// some mirrors ignore the limit parameter
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// get decodes the JSON body at path into dst. It reports false for a 404 or
// an empty body.
func (c *Client) get(ctx context.Context, path string, dst any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("catalog: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("catalog request failed", slog.String("path", path), slog.String("error", err.Error()))
		return false, apperror.Upstream("Catalog is unavailable", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("catalog request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, apperror.Upstream("Catalog is unavailable",
			fmt.Errorf("catalog: %s returned %d", path, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return false, apperror.Upstream("Catalog is unavailable", fmt.Errorf("catalog: reading %s: %w", path, err))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, apperror.Upstream("Catalog returned an invalid response", fmt.Errorf("catalog: decoding %s: %w", path, err))
	}
	return true, nil
}
