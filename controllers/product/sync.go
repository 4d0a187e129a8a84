package productcontroller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/catalog"
	"github.com/sitsofe/pos-terminal/terminal"
)

// POST /catalog/sync
func SyncCatalog(t *terminal.Terminal) gin.HandlerFunc {
	return runSync(t, t.Sync.SyncIfEmpty)
}

// POST /catalog/refresh
func RefreshCatalog(t *terminal.Terminal) gin.HandlerFunc {
	return runSync(t, t.Sync.ForceRefresh)
}

// GET /catalog/state
func GetCatalogState(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"count":      t.Sync.Count(c.Request.Context()),
			"refreshing": t.Sync.Refreshing().Get(),
		})
	}
}

func runSync(t *terminal.Terminal, op func(context.Context) (catalog.SyncResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := op(c.Request.Context())
		if err != nil {
			// the cache is untouched; the UI keeps browsing what it has
			count := t.Sync.Count(c.Request.Context())
			msg := catalog.MsgLoadFailed
			if count > 0 {
				msg = catalog.MsgShowingCached
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": msg, "count": count})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
