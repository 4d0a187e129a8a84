package routes

import (
	"github.com/gin-gonic/gin"

	orderControllers "github.com/sitsofe/pos-terminal/controllers/order"
	"github.com/sitsofe/pos-terminal/middleware"
	"github.com/sitsofe/pos-terminal/terminal"
)

func SetupOrderRoutes(r *gin.Engine, t *terminal.Terminal) {
	apiKey := middleware.ValidateAPIKey(t.Config.LocalAPIKey)

	// Submit the current cart as a sale
	r.POST("/checkout", apiKey, middleware.RequireSession(t.Session), orderControllers.PlaceSaleHandler(t))

	// Customer directory (cached first)
	r.GET("/customers", apiKey, orderControllers.GetCustomersHandler(t))

	// websocket endpoint for the live terminal feed
	r.GET("/ws", apiKey, orderControllers.TerminalWebSocketHandler(t))
}
