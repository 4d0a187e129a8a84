package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/auth"
)

// RequireSession rejects requests that need the backend while nobody is logged in. The
// session is made available to handlers under "session".
func RequireSession(holder *auth.Holder) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := holder.Current()
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
			c.Abort()
			return
		}

		c.Set("session", s)
		c.Set("user_id", s.UserID)
		c.Next()
	}
}
