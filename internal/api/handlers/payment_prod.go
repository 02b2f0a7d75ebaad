//go:build production

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const TestPaymentEnabled = false

func (h *PaymentHandler) CreateTestPayment(c *gin.Context) {
	c.AbortWithStatus(http.StatusNotFound)
}
