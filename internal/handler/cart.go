package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/auth"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/service"
)

// ProductLookup resolves a product id to a catalog snapshot for a new cart line.
type ProductLookup interface {
	Product(ctx context.Context, id int) (*model.Product, error)
}

// CartHandler serves the cart of the signed-in account.
//
// Every mutation passes the acting account id from the request's token to
// the cart store. Requests without a token, or with a token for an account
// that is no longer signed in, get 401 and the cart is left untouched.
type CartHandler struct {
	cart     *service.CartStore
	products ProductLookup
	logger   *slog.Logger
}

func NewCartHandler(cart *service.CartStore, products ProductLookup, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		cart:     cart,
		products: products,
		logger:   logger,
	}
}

type cartView struct {
	Items   []model.CartLine  `json:"items"`
	Summary model.CartSummary `json:"summary"`
}

// addItemRequest names the product either by id (looked up in the catalog)
// or as a full snapshot the client already holds.
type addItemRequest struct {
	ProductID int            `json:"productId"`
	Product   *model.Product `json:"product,omitempty"`
	Quantity  int            `json:"quantity,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type reorderRequest struct {
	Items []model.CartLine `json:"items"`
}

func (h *CartHandler) writeCart(w http.ResponseWriter, status int) {
	lines, summary := h.cart.View()
	writeJSON(w, status, cartView{Items: lines, Summary: summary})
}

func actingID(r *http.Request) string {
	id, _ := auth.AccountIDFromContext(r.Context())
	return id
}

func productIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil || id < 1 {
		return 0, apperror.ValidationFailed("productId", "Invalid product id")
	}
	return id, nil
}

// HandleGet returns the cart lines and their summary. Anonymous callers see
// an empty cart.
//
// HTTP: GET /api/cart
func (h *CartHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if !h.cart.Accepts(actingID(r)) {
		writeJSON(w, http.StatusOK, cartView{
			Items:   []model.CartLine{},
			Summary: model.CartSummary{FormattedTotal: "$0.00", IsEmpty: true},
		})
		return
	}
	h.writeCart(w, http.StatusOK)
}

// HandleAdd adds a product to the cart.
//
// HTTP: POST /api/cart/items
// Body: {"productId": 3, "quantity": 2} or {"product": {...}}
func (h *CartHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	accountID := actingID(r)
	// Checked up front so an anonymous click never costs a catalog round-trip.
	if !h.cart.Accepts(accountID) {
		writeError(w, apperror.Unauthorized(service.MsgSignInToAdd))
		return
	}

	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product := req.Product
	if product != nil && product.ID < 1 {
		writeError(w, apperror.ValidationFailed("product", "Invalid product id"))
		return
	}
	if product == nil {
		if req.ProductID < 1 {
			writeError(w, apperror.ValidationFailed("productId", "Product id is required"))
			return
		}
		p, err := h.products.Product(r.Context(), req.ProductID)
		if err != nil {
			writeError(w, err)
			return
		}
		product = p
	}

	if err := h.cart.AddQuantity(r.Context(), *product, req.Quantity, accountID); err != nil {
		writeError(w, err)
		return
	}

	h.logger.Debug("added to cart",
		slog.String("accountID", accountID),
		slog.Int("productID", product.ID),
		slog.Int("quantity", req.Quantity),
	)
	h.writeCart(w, http.StatusOK)
}

// HandleUpdate sets a line's quantity; zero or less removes the line.
//
// HTTP: PUT /api/cart/items/{productID}
func (h *CartHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.apply(w, h.cart.UpdateQuantity(r.Context(), id, req.Quantity, actingID(r)))
}

// HandleRemove drops a line.
//
// HTTP: DELETE /api/cart/items/{productID}
func (h *CartHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, h.cart.RemoveFromCart(r.Context(), id, actingID(r)))
}

// HandleIncrease is the "+" button.
//
// HTTP: POST /api/cart/items/{productID}/increase
func (h *CartHandler) HandleIncrease(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, h.cart.IncreaseQuantity(r.Context(), id, actingID(r)))
}

// HandleDecrease is the "−" button; at quantity one it removes the line.
//
// HTTP: POST /api/cart/items/{productID}/decrease
func (h *CartHandler) HandleDecrease(w http.ResponseWriter, r *http.Request) {
	id, err := productIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, h.cart.DecreaseQuantity(r.Context(), id, actingID(r)))
}

// HandleReorder stores the cart in the order given, e.g. after drag-and-drop.
//
// HTTP: PUT /api/cart/order
// Body: {"items": [...]}
func (h *CartHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	h.apply(w, h.cart.ReorderCart(r.Context(), req.Items, actingID(r)))
}

// HandleClear empties the cart.
//
// HTTP: DELETE /api/cart
func (h *CartHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.apply(w, h.cart.ClearCart(r.Context(), actingID(r)))
}

func (h *CartHandler) apply(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}
