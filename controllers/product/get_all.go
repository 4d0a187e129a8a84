package productcontroller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/store"
	"github.com/sitsofe/pos-terminal/terminal"
)

// GET /products?search=&offset=&limit=
func GetProducts(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1️⃣ Paging params
		search := c.Query("search")
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.PageSize)))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		if limit > store.PageSize {
			limit = store.PageSize
		}

		// 2️⃣ Query the cache; a storage failure degrades to an empty page
		items, err := t.Products.FetchPage(c.Request.Context(), search, offset, limit)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{
				"items":    []interface{}{},
				"offset":   offset,
				"limit":    limit,
				"has_more": false,
				"warning":  "Catalog is unavailable",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items":      items,
			"offset":     offset,
			"limit":      limit,
			"has_more":   len(items) == limit,
			"refreshing": t.Sync.Refreshing().Get(),
		})
	}
}
