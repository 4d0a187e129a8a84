package cartControllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sitsofe/pos-terminal/cart"
	"github.com/sitsofe/pos-terminal/scanner"
	"github.com/sitsofe/pos-terminal/terminal"
)

type CartItemInput struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"` // delta; 0 means +1
}

type ScanInput struct {
	Code string `json:"code" binding:"required"`
}

// LineView is a cart line priced from the catalog cache.
type LineView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Barcode   *string         `json:"barcode,omitempty"`
}

// View is what the UI renders for the cart.
type View struct {
	Lines      []LineView      `json:"lines"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Unresolved []string        `json:"unresolved,omitempty"`
}

// BuildView prices snap against the catalog cache as it is now.
func BuildView(ctx context.Context, t *terminal.Terminal, snap cart.Snapshot) (View, error) {
	lines, dropped, err := t.Cart.Lines(ctx, snap)
	if err != nil {
		return View{}, err
	}
	v := View{Lines: make([]LineView, 0, len(lines)), Total: decimal.Zero, Count: snap.Count(), Unresolved: dropped}
	for _, l := range lines {
		sub := l.Subtotal()
		v.Lines = append(v.Lines, LineView{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Subtotal:  sub,
			Barcode:   l.Product.Barcode,
		})
		v.Total = v.Total.Add(sub)
	}
	return v, nil
}

// GET /cart
func GetCart(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondWithCart(c, t, http.StatusOK, t.Cart.Snapshot())
	}
}

// POST /cart
func UpdateCartItem(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input CartItemInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}
		delta := input.Quantity
		if delta == 0 {
			delta = 1
		}

		// Only known products may enter the cart
		if delta > 0 {
			found, err := t.Cart.Resolve(c.Request.Context(), []string{input.ProductID})
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate product"})
				return
			}
			if len(found) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Product does not exist"})
				return
			}
		}

		respondWithCart(c, t, http.StatusOK, t.Cart.Add(input.ProductID, delta))
	}
}

// DELETE /cart/:product_id
func RemoveCartItem(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondWithCart(c, t, http.StatusOK, t.Cart.Remove(c.Param("product_id")))
	}
}

// DELETE /cart
func ClearCart(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		t.Cart.Clear()
		respondWithCart(c, t, http.StatusOK, t.Cart.Snapshot())
	}
}

// POST /cart/scan
func ScanBarcode(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input ScanInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		res, product, err := t.Scanner.Ingest(c.Request.Context(), input.Code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up barcode", "result": res})
			return
		}
		switch res {
		case scanner.ResultNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "No product for barcode: " + scanner.Normalize(input.Code), "result": res})
			return
		case scanner.ResultEmpty:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty barcode", "result": res})
			return
		}

		view, err := BuildView(c.Request.Context(), t, t.Cart.Snapshot())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": res, "product": product, "cart": view})
	}
}

func respondWithCart(c *gin.Context, t *terminal.Terminal, status int, snap cart.Snapshot) {
	view, err := BuildView(c.Request.Context(), t, snap)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}
	c.JSON(status, view)
}
