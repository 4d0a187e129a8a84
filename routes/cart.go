package routes

import (
	"github.com/gin-gonic/gin"

	cartControllers "github.com/sitsofe/pos-terminal/controllers/cart"
	"github.com/sitsofe/pos-terminal/middleware"
	"github.com/sitsofe/pos-terminal/terminal"
)

// SetupCartRoutes registers all "/cart" endpoints.
func SetupCartRoutes(r *gin.Engine, t *terminal.Terminal) {
	cartGroup := r.Group("/cart")
	cartGroup.Use(middleware.ValidateAPIKey(t.Config.LocalAPIKey))
	{
		cartGroup.GET("", cartControllers.GetCart(t))
		cartGroup.POST("", cartControllers.UpdateCartItem(t))
		cartGroup.POST("/scan", cartControllers.ScanBarcode(t))
		cartGroup.DELETE("", cartControllers.ClearCart(t))
		cartGroup.DELETE("/:product_id", cartControllers.RemoveCartItem(t))
	}
}
