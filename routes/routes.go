package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/terminal"
)

// SetupRoutes is the single entry-point that wires up Session, Catalog, Cart and Checkout route groups.
func SetupRoutes(r *gin.Engine, t *terminal.Terminal) {
	// 1️⃣ Session routes (no API key: the UI logs in before it has anything else)
	SetupSessionRoutes(r, t)

	// 2️⃣ Catalog routes (API-Key-protected)
	SetupCatalogRoutes(r, t)

	// 3️⃣ Cart routes (API-Key-protected)
	SetupCartRoutes(r, t)

	// checkout, customers and the live feed
	SetupOrderRoutes(r, t)
}
