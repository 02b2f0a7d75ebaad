package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/services"
	"github.com/yoockh/erasreview/internal/utils"
)

const maxWebhookBytes = 65536

type PaymentHandler struct {
	svc services.PaymentService
}

func NewPaymentHandler(svc services.PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

type checkoutRequest struct {
	PackageTier models.PackageTier `json:"package_tier" binding:"required"`
}

type verifyRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

func (h *PaymentHandler) Checkout(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "PaymentHandler.Checkout", err)
		return
	}

	res, err := h.svc.CreateCheckout(c.Request.Context(), p.UserID, p.Email, req.PackageTier)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Verify(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "PaymentHandler.Verify", err)
		return
	}

	res, err := h.svc.VerifySession(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	out, err := h.svc.ListMine(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// Webhook is unauthenticated; the processor signature is the credential.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	const op = "PaymentHandler.Webhook"

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read body", err))
		return
	}
	if len(payload) > maxWebhookBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "payload too large", nil))
		return
	}

	res, err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
