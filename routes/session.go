package routes

import (
	"github.com/gin-gonic/gin"

	userControllers "github.com/sitsofe/pos-terminal/controllers/user"
	"github.com/sitsofe/pos-terminal/terminal"
)

// SetupSessionRoutes registers all "/session" endpoints.
func SetupSessionRoutes(r *gin.Engine, t *terminal.Terminal) {
	sessionGroup := r.Group("/session")
	{
		sessionGroup.POST("", userControllers.LoginHandler(t))
		sessionGroup.GET("", userControllers.GetSessionHandler(t))
		sessionGroup.DELETE("", userControllers.LogoutHandler(t))
	}
}
