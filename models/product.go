package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item as cached locally. Rows are only ever replaced wholesale by
// a catalog sync, never patched field by field.
type Product struct {
	ID           string          `gorm:"primaryKey;size:64" json:"id"`
	Name         string          `gorm:"not null;index" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"cost_price"`
	Stock        decimal.Decimal `gorm:"type:decimal(14,3);not null;default:0" json:"stock"`
	Barcode      *string         `gorm:"index;size:128" json:"barcode"`
	CategoryName *string         `json:"category_name"`
	SyncedAt     time.Time       `json:"synced_at"`
}

func (Product) TableName() string { return "products" }
