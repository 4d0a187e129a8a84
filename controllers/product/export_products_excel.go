package productcontroller

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/catalog"
	"github.com/sitsofe/pos-terminal/terminal"
)

// GET /catalog/export-excel
func ExportProductsToExcel(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var buf bytes.Buffer
		if _, err := catalog.WriteXLSX(c.Request.Context(), t.Products, &buf); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
			return
		}

		// Set response headers for download
		c.Header("Content-Disposition", "attachment; filename=products.xlsx")
		c.Header("Content-Transfer-Encoding", "binary")
		c.Header("Expires", "0")
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}
