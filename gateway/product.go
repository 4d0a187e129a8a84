package gateway

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sitsofe/pos-terminal/models"
)

// RemoteProduct is a subsidiary product as the backend sends it. Optional text fields
// sometimes arrive as the literal string "null"; numbers may arrive quoted.
type RemoteProduct struct {
	ID            string              `json:"_id"`
	TenantID      *string             `json:"tenant_id"`
	SubsidiaryID  *string             `json:"subsidiary_id"`
	CategoryID    *string             `json:"category_id"`
	CategoryName  *string             `json:"category_name"`
	Name          string              `json:"name"`
	Description   *string             `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	CostPrice     decimal.NullDecimal `json:"cost_price"`
	Stock         decimal.Decimal     `json:"stock"`
	Barcode       *string             `json:"barcode"`
	ExpiryDate    *string             `json:"expiry_date"`
	SupplierName  *string             `json:"supplier_name"`
}

// RemoteCustomer is a customer directory entry.
type RemoteCustomer struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// nullIfLiteral maps absent, blank and "null" strings to nil.
func nullIfLiteral(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

// ToProduct normalizes the record into its cached form.
func (p RemoteProduct) ToProduct(syncedAt time.Time) models.Product {
	cost := decimal.Zero
	if p.CostPrice.Valid {
		cost = p.CostPrice.Decimal
	}
	return models.Product{
		ID:           strings.TrimSpace(p.ID),
		Name:         strings.TrimSpace(p.Name),
		Price:        p.Price,
		CostPrice:    cost,
		Stock:        p.Stock,
		Barcode:      nullIfLiteral(p.Barcode),
		CategoryName: nullIfLiteral(p.CategoryName),
		SyncedAt:     syncedAt,
	}
}

// Valid reports whether the record can be cached at all.
func (p RemoteProduct) Valid() bool {
	return strings.TrimSpace(p.ID) != "" && !p.Price.IsNegative()
}

func (c RemoteCustomer) ToCustomer() models.Customer {
	return models.Customer{
		ID:    c.ID,
		Name:  strings.TrimSpace(c.Name),
		Phone: strings.TrimSpace(c.Phone),
	}
}
