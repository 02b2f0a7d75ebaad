package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/services"
)

type ApplicationHandler struct {
	apps    services.ApplicationService
	reviews services.ReviewService
}

func NewApplicationHandler(apps services.ApplicationService, reviews services.ReviewService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, reviews: reviews}
}

func (h *ApplicationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	apps, err := h.apps.ListMine(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateApplicationInput
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "ApplicationHandler.Create", err)
			return
		}
	}

	app, err := h.apps.Create(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	app, err := h.apps.Get(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.UpdateDraftInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ApplicationHandler.Update", err)
		return
	}

	app, err := h.apps.UpdateDraft(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.apps.Delete(c.Request.Context(), c.Param("id"), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	app, err := h.apps.Submit(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *ApplicationHandler) AddExperience(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.ExperienceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ApplicationHandler.AddExperience", err)
		return
	}

	exp, err := h.apps.AddExperience(c.Request.Context(), c.Param("id"), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (h *ApplicationHandler) UpdateExperience(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.ExperienceInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ApplicationHandler.UpdateExperience", err)
		return
	}

	exp, err := h.apps.UpdateExperience(c.Request.Context(), c.Param("id"), c.Param("exp_id"), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (h *ApplicationHandler) DeleteExperience(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.apps.DeleteExperience(c.Request.Context(), c.Param("id"), c.Param("exp_id"), userID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Review is the applicant's read-only view of a finished review.
func (h *ApplicationHandler) Review(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	view, err := h.reviews.GetReviewView(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
