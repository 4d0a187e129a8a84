package orderControllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sitsofe/pos-terminal/checkout"
	"github.com/sitsofe/pos-terminal/gateway"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/terminal"
)

// -------- Request Structs --------
type PlaceSaleRequest struct {
	Internal   bool    `json:"internal"`
	CustomerID string  `json:"customer_id"`
	Notes      *string `json:"notes"`
}

// POST /checkout
func PlaceSaleHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlaceSaleRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
			return
		}

		// 1️⃣ Resolve the selected customer from the directory
		var customer *models.Customer
		if !req.Internal && strings.TrimSpace(req.CustomerID) != "" {
			found, ok := t.Directory.Find(req.CustomerID)
			if !ok {
				// directory not loaded yet in this process
				_, _ = t.Directory.Load(c.Request.Context(), false)
				found, ok = t.Directory.Find(req.CustomerID)
			}
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown customer"})
				return
			}
			customer = &found
		}

		// 2️⃣ Build, validate and submit
		outcome, err := t.Checkout.Checkout(c.Request.Context(), checkout.Input{
			Internal: req.Internal,
			Customer: customer,
			Notes:    req.Notes,
		})
		if err != nil {
			status, body := checkoutError(err)
			c.JSON(status, body)
			return
		}

		// 3️⃣ Tell every live feed about the sale
		broadcastSale(outcome)
		c.JSON(http.StatusCreated, outcome)
	}
}

func checkoutError(err error) (int, gin.H) {
	var ve *checkout.ValidationError
	var ce *checkout.CheckoutError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, gin.H{"error": ve.Message, "code": ve.Code}
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, gateway.ErrNoSession):
		return http.StatusUnauthorized, gin.H{"error": "No active session"}
	case errors.As(err, &ce):
		return http.StatusBadGateway, gin.H{"error": checkout.MsgSaleFailed, "request_id": ce.RequestID}
	default:
		return http.StatusInternalServerError, gin.H{"error": checkout.MsgSaleFailed}
	}
}

// GET /customers?force=&q=
func GetCustomersHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		force := c.Query("force") == "true"

		resp := gin.H{}
		if _, err := t.Directory.Load(c.Request.Context(), force); err != nil {
			if len(t.Directory.Customers().Get()) == 0 {
				resp["warning"] = checkout.MsgCustomersFailed
			} else {
				resp["warning"] = checkout.MsgShowingCachedCustomers
			}
		}

		customers := t.Directory.Search(c.Query("q"))
		if customers == nil {
			customers = []models.Customer{}
		}
		resp["customers"] = customers
		c.JSON(http.StatusOK, resp)
	}
}
