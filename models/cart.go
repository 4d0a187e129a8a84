package models

import "github.com/shopspring/decimal"

// CartLine is a cart quantity joined with the product it resolved to.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is price x quantity at the time the line was resolved.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
