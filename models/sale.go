package models

import "github.com/shopspring/decimal"

type CustomerType string

const (
	// The backend records internal (store-use) sales under the owner tag.
	CustomerTypeInternal CustomerType = "owner"
	CustomerTypeRegular  CustomerType = "regular"
)

// SaleLine is a priced snapshot of one cart line taken when the sale was built.
type SaleLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

func (l SaleLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SaleRequest is the payload submitted to the backend at checkout.
type SaleRequest struct {
	RequestID     string       `json:"request_id" validate:"required"`
	CustomerPhone *string      `json:"customer_phone" validate:"required_if=CustomerType regular"`
	CustomerType  CustomerType `json:"customer_type" validate:"oneof=owner regular"`
	PaymentMethod string       `json:"payment_method" validate:"required"`
	Items         []SaleLine   `json:"items" validate:"min=1,dive"`
	Condition     *string      `json:"condition,omitempty"`
}

// Total sums every line.
func (r SaleRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Items {
		total = total.Add(l.Subtotal())
	}
	return total
}

// SaleResult is what the backend answers to a created sale.
type SaleResult struct {
	ID      *string `json:"id"`
	Message *string `json:"message"`
}

// SaleOutcome is reported back to the UI after a successful checkout.
type SaleOutcome struct {
	SaleID    string          `json:"sale_id,omitempty"`
	RequestID string          `json:"request_id"`
	Message   string          `json:"message"`
	Total     decimal.Decimal `json:"total"`
	Lines     []SaleLine      `json:"lines"`
	Dropped   []string        `json:"dropped,omitempty"`
}
