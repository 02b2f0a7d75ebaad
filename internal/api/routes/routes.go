package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yoockh/erasreview/internal/api/handlers"
	"github.com/yoockh/erasreview/internal/api/middleware"
)

type Deps struct {
	Auth        *handlers.AuthHandler
	Application *handlers.ApplicationHandler
	Document    *handlers.DocumentHandler
	Payment     *handlers.PaymentHandler
	Admin       *handlers.AdminHandler
	Blog        *handlers.BlogHandler
	Events      *handlers.EventsHandler

	Tokens     middleware.TokenParser
	Principals middleware.PrincipalResolver
	Limiter    *middleware.RateLimiter

	// EnableTestPayments mounts POST /payments/test.
	EnableTestPayments bool
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	public := r.Group("/")
	if d.Limiter != nil {
		public.Use(d.Limiter.Middleware())
	}
	public.POST("/auth/register", d.Auth.Register)
	public.POST("/auth/login", d.Auth.Login)
	public.GET("/blog", d.Blog.ListPublished)
	public.GET("/blog/:slug", d.Blog.GetPublished)
	r.GET("/sitemap.xml", d.Blog.Sitemap)
	r.POST("/webhooks/stripe", d.Payment.Webhook)
	r.POST("/cron/blog/generate", d.Blog.Generate)

	// Authenticated
	authed := r.Group("/")
	authed.Use(middleware.JWTAuth(d.Tokens), middleware.LoadPrincipal(d.Principals))

	authed.GET("/me", d.Auth.Me)

	authed.GET("/applications", d.Application.List)
	authed.POST("/applications", d.Application.Create)
	authed.GET("/applications/:id", d.Application.Get)
	authed.PUT("/applications/:id", d.Application.Update)
	authed.DELETE("/applications/:id", d.Application.Delete)
	authed.POST("/applications/:id/submit", d.Application.Submit)

	authed.POST("/applications/:id/experiences", d.Application.AddExperience)
	authed.PUT("/applications/:id/experiences/:exp_id", d.Application.UpdateExperience)
	authed.DELETE("/applications/:id/experiences/:exp_id", d.Application.DeleteExperience)

	authed.POST("/applications/:id/documents", d.Document.Upload)
	authed.GET("/applications/:id/documents", d.Document.List)
	authed.DELETE("/applications/:id/documents/:doc_id", d.Document.Delete)

	authed.GET("/reviews/:id", d.Application.Review)

	authed.POST("/payments/checkout", d.Payment.Checkout)
	authed.POST("/payments/verify", d.Payment.Verify)
	authed.GET("/payments", d.Payment.List)
	if d.EnableTestPayments && handlers.TestPaymentEnabled {
		authed.POST("/payments/test", d.Payment.CreateTestPayment)
	}

	// Admin
	admin := authed.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	admin.GET("/applications", d.Admin.ListApplications)
	admin.GET("/applications/:id", d.Admin.GetApplication)
	admin.PUT("/applications/:id/status", d.Admin.UpdateStatus)
	admin.PUT("/applications/:id/review", d.Admin.AttachReview)
	admin.POST("/applications/:id/review/complete", d.Admin.CompleteReview)
	admin.POST("/applications/:id/documents", d.Document.Upload)
	admin.PUT("/users/:id/role", d.Admin.SetRole)

	admin.GET("/blog", d.Blog.ListAll)
	admin.POST("/blog", d.Blog.Create)
	admin.PUT("/blog/:slug", d.Blog.Update)
	admin.DELETE("/blog/:slug", d.Blog.Delete)
	admin.POST("/blog/:slug/publish", d.Blog.Publish)
	admin.POST("/seo/submit", d.Blog.SubmitURL)

	admin.GET("/events/ws", d.Events.Stream)
}
