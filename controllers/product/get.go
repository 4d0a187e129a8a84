package productcontroller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/terminal"
)

// GET /products/barcode/:code
func GetProductByBarcode(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Param("code")

		product, err := t.Products.GetByBarcode(c.Request.Context(), code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up barcode"})
			return
		}
		if product == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No product for barcode: " + code})
			return
		}

		c.JSON(http.StatusOK, product)
	}
}
