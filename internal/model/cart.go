package model

import "time"

// CartLine is one product in a cart together with its quantity.
//
// The product fields are a snapshot taken when the line was created so the
// cart can be rendered without a catalog round-trip. The flat layout (product
// fields next to quantity) matches the persisted format under cart_<id>.
type CartLine struct {
	Product
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"addedAt,omitzero"`
}

// NewCartLine snapshots p into a line with the given quantity.
func NewCartLine(p Product, quantity int, now time.Time) CartLine {
	return CartLine{Product: p, Quantity: quantity, AddedAt: now}
}

// CartSummary is the aggregate view of a cart.
type CartSummary struct {
	TotalItems     int     `json:"totalItems"`
	TotalPrice     float64 `json:"totalPrice"`
	UniqueItems    int     `json:"uniqueItems"`
	FormattedTotal string  `json:"formattedTotal"`
	IsEmpty        bool    `json:"isEmpty"`
}
