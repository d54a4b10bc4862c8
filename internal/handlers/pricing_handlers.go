package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"restaurant_booking_backend/internal/models"
	"restaurant_booking_backend/internal/services"
	"restaurant_booking_backend/pkg/utils"
)

// PricingHandler serves price quotes.
type PricingHandler struct {
	pricingService services.PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(ps services.PricingService) *PricingHandler {
	return &PricingHandler{pricingService: ps}
}

// Quote prices a prospective booking. It always answers 200: invalid input and internal
// failures come back as a success=false fallback result.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req models.PriceQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.LogWarn("Quote: invalid request payload, answering with fallback", map[string]interface{}{"error": err.Error()})
	}
	c.JSON(http.StatusOK, h.pricingService.CalculatePrice(c.Request.Context(), req))
}

// ClearQuoteCache drops all cached quotes.
func (h *PricingHandler) ClearQuoteCache(c *gin.Context) {
	h.pricingService.ClearQuoteCache()
	c.JSON(http.StatusOK, gin.H{"message": "Quote cache cleared."})
}

// GetParams returns the pricing parameters in effect.
func (h *PricingHandler) GetParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.pricingService.Params())
}
