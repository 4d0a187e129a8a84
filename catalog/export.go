package catalog

import (
	"context"
	"io"

	"github.com/tealeg/xlsx"

	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/store"
)

// PageSource reads the cached catalog one page at a time.
type PageSource interface {
	FetchPage(ctx context.Context, search string, offset, limit int) ([]models.Product, error)
}

var exportHeaders = []string{
	"ID", "Name", "Price", "CostPrice", "Stock", "Barcode", "Category", "SyncedAt",
}

// WriteXLSX writes every cached record, in catalog order, as a single-sheet workbook.
// It returns the number of rows written.
func WriteXLSX(ctx context.Context, src PageSource, w io.Writer) (int, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return 0, err
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}

	rows := 0
	for offset := 0; ; offset += store.PageSize {
		page, err := src.FetchPage(ctx, "", offset, store.PageSize)
		if err != nil {
			return rows, err
		}
		for _, p := range page {
			addProductRow(sheet, p)
			rows++
		}
		if len(page) < store.PageSize {
			break
		}
	}

	if err := file.Write(w); err != nil {
		return rows, err
	}
	return rows, nil
}

func addProductRow(sheet *xlsx.Sheet, p models.Product) {
	row := sheet.AddRow()
	row.AddCell().SetString(p.ID)
	row.AddCell().SetString(p.Name)
	row.AddCell().SetString(p.Price.StringFixed(2))
	row.AddCell().SetString(p.CostPrice.StringFixed(2))
	row.AddCell().SetString(p.Stock.String())
	row.AddCell().SetString(deref(p.Barcode))
	row.AddCell().SetString(deref(p.CategoryName))
	if p.SyncedAt.IsZero() {
		row.AddCell().SetString("")
	} else {
		row.AddCell().SetString(p.SyncedAt.Format("2006-01-02 15:04:05"))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
