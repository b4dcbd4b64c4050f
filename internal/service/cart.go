package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// Messages shown when a cart mutation arrives without a signed-in account.
const (
	MsgSignInToAdd    = "Please log in to add items to cart"
	MsgSignInToManage = "Please log in to manage your cart"
)

// CartStore holds the cart of the account currently bound by the session.
//
// STATE MACHINE:
//
//	Anonymous ──Bind(id)──▶ Bound(id) ──Unbind()──▶ Anonymous
//
// Mutations take the acting account id and are only applied while the store
// is bound to that same id; anything else is rejected with ErrUnauthorized
// and leaves the cart untouched. Every accepted mutation overwrites the whole
// cart under cart_<id> before the in-memory copy changes, so memory never
// runs ahead of storage.
type CartStore struct {
	mu      sync.Mutex
	store   repository.KeyValueStore
	logger  *slog.Logger
	now     func() time.Time
	boundID string
	lines   []model.CartLine
}

func NewCartStore(store repository.KeyValueStore, logger *slog.Logger) *CartStore {
	return &CartStore{
		store:  store,
		logger: logger,
		now:    time.Now,
		lines:  []model.CartLine{},
	}
}

// Bind loads accountID's persisted cart and makes it the active one. A
// missing or unreadable cart binds as empty.
func (c *CartStore) Bind(ctx context.Context, accountID string) {
	lines := c.Load(ctx, accountID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundID = accountID
	c.lines = lines
}

// Unbind returns to the anonymous state with an empty in-memory cart. The
// persisted cart is left as it was.
func (c *CartStore) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boundID = ""
	c.lines = []model.CartLine{}
}

// BoundAccountID returns the id the store is bound to, or "".
func (c *CartStore) BoundAccountID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.boundID
}

// Accepts reports whether a mutation by accountID would be applied.
func (c *CartStore) Accepts(accountID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return accountID != "" && accountID == c.boundID
}

// Load reads accountID's persisted cart without binding it.
func (c *CartStore) Load(ctx context.Context, accountID string) []model.CartLine {
	var lines []model.CartLine
	if _, err := repository.GetJSON(ctx, c.store, repository.CartKey(accountID), &lines); err != nil {
		c.logger.Warn("cart unreadable; loading empty cart",
			slog.String("accountID", accountID),
			slog.String("error", err.Error()),
		)
		return []model.CartLine{}
	}
	if lines == nil {
		lines = []model.CartLine{}
	}
	return lines
}

// SetCart replaces the in-memory cart without persisting it.
func (c *CartStore) SetCart(lines []model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = cloneLines(lines)
}

// Lines returns a copy of the current cart in display order.
func (c *CartStore) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.lines)
}

// AddToCart adds one unit of product: an existing line's quantity goes up by
// one, otherwise a new line is appended.
func (c *CartStore) AddToCart(ctx context.Context, product model.Product, accountID string) error {
	return c.AddQuantity(ctx, product, 1, accountID)
}

// AddQuantity adds quantity units of product.
func (c *CartStore) AddQuantity(ctx context.Context, product model.Product, quantity int, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToAdd, func(lines []model.CartLine) ([]model.CartLine, error) {
		if quantity < 1 {
			return nil, apperror.ValidationFailed("quantity", "Quantity must be at least 1")
		}
		if i := indexOf(lines, product.ID); i >= 0 {
			lines[i].Quantity += quantity
			return lines, nil
		}
		return append(lines, model.NewCartLine(product, quantity, c.now().UTC())), nil
	})
}

// RemoveFromCart drops the product's line whatever its quantity.
func (c *CartStore) RemoveFromCart(ctx context.Context, productID int, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToManage, func(lines []model.CartLine) ([]model.CartLine, error) {
		return removeLine(lines, productID), nil
	})
}

// UpdateQuantity sets the product's quantity to exactly quantity. A quantity
// below one removes the line.
func (c *CartStore) UpdateQuantity(ctx context.Context, productID, quantity int, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToManage, func(lines []model.CartLine) ([]model.CartLine, error) {
		if quantity < 1 {
			return removeLine(lines, productID), nil
		}
		if i := indexOf(lines, productID); i >= 0 {
			lines[i].Quantity = quantity
		}
		return lines, nil
	})
}

// IncreaseQuantity adds one to an existing line. Unknown products are a no-op.
func (c *CartStore) IncreaseQuantity(ctx context.Context, productID int, accountID string) error {
	return c.step(ctx, productID, +1, accountID)
}

// DecreaseQuantity takes one from an existing line, removing it at zero.
func (c *CartStore) DecreaseQuantity(ctx context.Context, productID int, accountID string) error {
	return c.step(ctx, productID, -1, accountID)
}

func (c *CartStore) step(ctx context.Context, productID, delta int, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToManage, func(lines []model.CartLine) ([]model.CartLine, error) {
		i := indexOf(lines, productID)
		if i < 0 {
			return lines, nil
		}
		if q := lines[i].Quantity + delta; q >= 1 {
			lines[i].Quantity = q
			return lines, nil
		}
		return removeLine(lines, productID), nil
	})
}

// ReorderCart replaces the cart with newOrder as given. The caller (a
// drag-and-drop list, typically) is trusted to pass a permutation.
func (c *CartStore) ReorderCart(ctx context.Context, newOrder []model.CartLine, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToManage, func([]model.CartLine) ([]model.CartLine, error) {
		return cloneLines(newOrder), nil
	})
}

// ClearCart empties the cart and persists the empty cart.
func (c *CartStore) ClearCart(ctx context.Context, accountID string) error {
	return c.mutate(ctx, accountID, MsgSignInToManage, func([]model.CartLine) ([]model.CartLine, error) {
		return []model.CartLine{}, nil
	})
}

// mutate is the single write path: authorise, compute on a copy, persist the
// whole cart, then publish the copy.
func (c *CartStore) mutate(ctx context.Context, accountID, signInMsg string, fn func([]model.CartLine) ([]model.CartLine, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if accountID == "" || accountID != c.boundID {
		c.logger.Debug("cart mutation rejected",
			slog.String("actingID", accountID),
			slog.String("boundID", c.boundID),
		)
		return apperror.Unauthorized(signInMsg)
	}

	next, err := fn(cloneLines(c.lines))
	if err != nil {
		return err
	}
	if next == nil {
		next = []model.CartLine{}
	}

	if err := repository.SetJSON(ctx, c.store, repository.CartKey(accountID), next); err != nil {
		c.logger.Error("persisting cart failed",
			slog.String("accountID", accountID),
			slog.String("error", err.Error()),
		)
		return apperror.Persistence("Failed to update cart", err)
	}

	c.lines = next
	return nil
}

// IsInCart reports whether the product has a line.
func (c *CartStore) IsInCart(productID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return indexOf(c.lines, productID) >= 0
}

// ItemQuantity returns the product's quantity, or 0.
func (c *CartStore) ItemQuantity(productID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.lines, productID); i >= 0 {
		return c.lines[i].Quantity
	}
	return 0
}

// TotalItems is the sum of all quantities.
func (c *CartStore) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalItems(c.lines)
}

// TotalPrice is the sum of price × quantity.
func (c *CartStore) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalPrice(c.lines)
}

// UniqueItems is the number of lines.
func (c *CartStore) UniqueItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

// FormattedTotal renders TotalPrice as US dollars, e.g. "$1,234.56".
func (c *CartStore) FormattedTotal() string {
	return formatUSD(c.TotalPrice())
}

// Summary bundles the cart aggregates.
func (c *CartStore) Summary() model.CartSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return summarize(c.lines)
}

// View returns the lines and their summary taken under one lock, so the two
// always describe the same cart.
func (c *CartStore) View() ([]model.CartLine, model.CartSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneLines(c.lines), summarize(c.lines)
}

func summarize(lines []model.CartLine) model.CartSummary {
	total := totalPrice(lines)
	return model.CartSummary{
		TotalItems:     totalItems(lines),
		TotalPrice:     total,
		UniqueItems:    len(lines),
		FormattedTotal: formatUSD(total),
		IsEmpty:        len(lines) == 0,
	}
}

// IsUnauthorized reports whether err is a cart rejection for a caller that
// is not signed in as the bound account.
func IsUnauthorized(err error) bool {
	return errors.Is(err, apperror.ErrUnauthorized)
}

var usdPrinter = message.NewPrinter(language.AmericanEnglish)

func formatUSD(amount float64) string {
	return usdPrinter.Sprintf("$%.2f", amount)
}

// totalPrice is the unrounded sum of price × quantity. Rounding to cents
// happens only when the total is formatted.
func totalPrice(lines []model.CartLine) float64 {
	var total float64
	for _, l := range lines {
		total += l.Price * float64(l.Quantity)
	}
	return total
}

func totalItems(lines []model.CartLine) int {
	n := 0
	for _, l := range lines {
		n += l.Quantity
	}
	return n
}

func indexOf(lines []model.CartLine, productID int) int {
	for i, l := range lines {
		if l.ID == productID {
			return i
		}
	}
	return -1
}

func removeLine(lines []model.CartLine, productID int) []model.CartLine {
	out := lines[:0]
	for _, l := range lines {
		if l.ID != productID {
			out = append(out, l)
		}
	}
	return out
}

func cloneLines(lines []model.CartLine) []model.CartLine {
	out := make([]model.CartLine, len(lines))
	copy(out, lines)
	return out
}
