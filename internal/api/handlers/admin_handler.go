package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/models"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/services"
)

type AdminHandler struct {
	apps    services.ApplicationService
	reviews services.ReviewService
	users   services.UserService
}

func NewAdminHandler(apps services.ApplicationService, reviews services.ReviewService, users services.UserService) *AdminHandler {
	return &AdminHandler{apps: apps, reviews: reviews, users: users}
}

type statusRequest struct {
	Status   models.ApplicationStatus `json:"status" binding:"required"`
	Override bool                     `json:"override"`
	Note     string                   `json:"note"`
}

type roleRequest struct {
	Role models.UserRole `json:"role" binding:"required"`
}

func (h *AdminHandler) ListApplications(c *gin.Context) {
	apps, total, err := h.apps.ListAll(c.Request.Context(), pgrepo.ApplicationFilter{
		Status: models.ApplicationStatus(c.Query("status")),
		UserID: c.Query("user_id"),
		Limit:  queryInt(c, "limit", 20),
		Offset: queryInt(c, "offset", 0),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "total": total})
}

func (h *AdminHandler) GetApplication(c *gin.Context) {
	ctx := c.Request.Context()

	app, err := h.apps.AdminGet(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	reviews, err := h.reviews.ListForApplication(ctx, app.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app, "reviews": reviews})
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdminHandler.UpdateStatus", err)
		return
	}

	app, err := h.apps.UpdateStatus(c.Request.Context(), c.Param("id"), p.UserID, req.Status, req.Override, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *AdminHandler) AttachReview(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req services.ReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdminHandler.AttachReview", err)
		return
	}

	rv, err := h.reviews.AttachReview(c.Request.Context(), c.Param("id"), p.UserID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rv)
}

func (h *AdminHandler) CompleteReview(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	rv, err := h.reviews.CompleteReview(c.Request.Context(), c.Param("id"), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rv)
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "AdminHandler.SetRole", err)
		return
	}

	u, err := h.users.SetRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
