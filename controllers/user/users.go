package userControllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/auth"
	"github.com/sitsofe/pos-terminal/terminal"
)

type LoginInput struct {
	Token        string `json:"token" binding:"required"`
	TenantID     string `json:"tenant_id"`
	SubsidiaryID string `json:"subsidiary_id"`
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	Currency     string `json:"currency"`
}

// sessionView is a Session without its token.
func sessionView(s auth.Session) gin.H {
	return gin.H{
		"tenant_id":     s.TenantID,
		"subsidiary_id": s.SubsidiaryID,
		"user_id":       s.UserID,
		"role":          s.Role,
		"currency":      s.Currency,
	}
}

// POST /session
func LoginHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		s, err := auth.FromToken(input.Token, auth.Session{
			TenantID:     input.TenantID,
			SubsidiaryID: input.SubsidiaryID,
			UserID:       input.UserID,
			Role:         input.Role,
			Currency:     input.Currency,
		})
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		if s.TenantID == "" || s.SubsidiaryID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Tenant and subsidiary are required"})
			return
		}

		if err := t.Login(s); err != nil {
			if errors.Is(err, terminal.ErrRoleNotAllowed) {
				c.JSON(http.StatusForbidden, gin.H{"error": "This role cannot use the terminal"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}
		c.JSON(http.StatusOK, sessionView(s))
	}
}

// GET /session
func GetSessionHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := t.Session.Current()
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
			return
		}
		c.JSON(http.StatusOK, sessionView(s))
	}
}

// DELETE /session
func LogoutHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		t.Logout()
		c.Status(http.StatusNoContent)
	}
}
