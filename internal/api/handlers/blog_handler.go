package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/erasreview/internal/services"
	"github.com/yoockh/erasreview/internal/utils"
)

type BlogHandler struct {
	blog       services.BlogService
	seo        services.SEOService
	cronSecret string
}

func NewBlogHandler(blog services.BlogService, seo services.SEOService, cronSecret string) *BlogHandler {
	return &BlogHandler{blog: blog, seo: seo, cronSecret: cronSecret}
}

// ==========================
// Public
// ==========================

func (h *BlogHandler) ListPublished(c *gin.Context) {
	posts, err := h.blog.ListPublished(c.Request.Context(), int64(queryInt(c, "limit", 20)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *BlogHandler) GetPublished(c *gin.Context) {
	p, err := h.blog.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *BlogHandler) Sitemap(c *gin.Context) {
	posts, err := h.blog.ListPublished(c.Request.Context(), 1000)
	if err != nil {
		writeError(c, err)
		return
	}
	body, err := h.seo.Sitemap(posts)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "BlogHandler.Sitemap", "failed to render sitemap", err))
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

// Generate is called by an external scheduler holding the cron secret.
func (h *BlogHandler) Generate(c *gin.Context) {
	got := c.GetHeader("X-Cron-Secret")
	if h.cronSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.cronSecret)) != 1 {
		writeError(c, utils.E(utils.CodeUnauthorized, "BlogHandler.Generate", "invalid cron secret", nil))
		return
	}

	res, err := h.blog.GenerateNext(c.Request.Context(), time.Now().UTC())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ==========================
// Admin
// ==========================

func (h *BlogHandler) ListAll(c *gin.Context) {
	posts, err := h.blog.ListAll(c.Request.Context(), int64(queryInt(c, "limit", 50)), int64(queryInt(c, "offset", 0)))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *BlogHandler) Create(c *gin.Context) {
	var req services.BlogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "BlogHandler.Create", err)
		return
	}

	p, err := h.blog.Create(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *BlogHandler) Update(c *gin.Context) {
	var req services.BlogInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "BlogHandler.Update", err)
		return
	}

	p, err := h.blog.Update(c.Request.Context(), c.Param("slug"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *BlogHandler) Publish(c *gin.Context) {
	res, err := h.blog.Publish(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.blog.Delete(c.Request.Context(), c.Param("slug")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type seoSubmitRequest struct {
	URL string `json:"url" binding:"required"`
}

func (h *BlogHandler) SubmitURL(c *gin.Context) {
	var req seoSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "BlogHandler.SubmitURL", err)
		return
	}
	c.JSON(http.StatusOK, h.seo.SubmitURL(c.Request.Context(), req.URL))
}
