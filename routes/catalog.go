package routes

import (
	"github.com/gin-gonic/gin"

	productcontroller "github.com/sitsofe/pos-terminal/controllers/product"
	"github.com/sitsofe/pos-terminal/middleware"
	"github.com/sitsofe/pos-terminal/terminal"
)

// SetupCatalogRoutes registers the product browsing and catalog sync endpoints.
func SetupCatalogRoutes(r *gin.Engine, t *terminal.Terminal) {
	apiKey := middleware.ValidateAPIKey(t.Config.LocalAPIKey)

	// ─────────── Product Browsing ───────────
	products := r.Group("/products")
	products.Use(apiKey)
	{
		products.GET("", productcontroller.GetProducts(t))
		products.GET("/barcode/:code", productcontroller.GetProductByBarcode(t))
	}

	// ─────────── Catalog Sync ───────────
	catalogGroup := r.Group("/catalog")
	catalogGroup.Use(apiKey)
	{
		catalogGroup.GET("/state", productcontroller.GetCatalogState(t))
		catalogGroup.GET("/export-excel", productcontroller.ExportProductsToExcel(t))

		remote := catalogGroup.Group("")
		remote.Use(middleware.RequireSession(t.Session))
		remote.POST("/sync", productcontroller.SyncCatalog(t))
		remote.POST("/refresh", productcontroller.RefreshCatalog(t))
	}
}
