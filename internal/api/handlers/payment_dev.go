//go:build !production

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TestPaymentEnabled reports whether this binary serves POST /payments/test.
const TestPaymentEnabled = true

// CreateTestPayment records a succeeded payment without the processor.
// Builds tagged production replace it with a 404.
func (h *PaymentHandler) CreateTestPayment(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "PaymentHandler.CreateTestPayment", err)
		return
	}

	res, err := h.svc.CreateTestPayment(c.Request.Context(), userID, req.PackageTier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
