package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/erasreview/config"
	"github.com/yoockh/erasreview/internal/api/handlers"
	"github.com/yoockh/erasreview/internal/api/middleware"
	"github.com/yoockh/erasreview/internal/api/routes"
	"github.com/yoockh/erasreview/internal/auth"
	"github.com/yoockh/erasreview/internal/cache"
	"github.com/yoockh/erasreview/internal/logger"
	"github.com/yoockh/erasreview/internal/notify"
	"github.com/yoockh/erasreview/internal/providers/chat"
	"github.com/yoockh/erasreview/internal/providers/llm"
	"github.com/yoockh/erasreview/internal/providers/mail"
	"github.com/yoockh/erasreview/internal/providers/payments"
	"github.com/yoockh/erasreview/internal/providers/seo"
	mongorepo "github.com/yoockh/erasreview/internal/repositories/mongo"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/scheduler"
	"github.com/yoockh/erasreview/internal/services"
	"github.com/yoockh/erasreview/internal/storage"
	"github.com/yoockh/erasreview/internal/workers"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	db, err := config.NewPostgres(cfg.PostgresURI)
	if err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := config.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	log.Info("PostgreSQL connected")

	// Init Redis
	rdb, err := config.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	defer rdb.Close()
	log.Info("Redis connected")

	// Init MongoDB
	mongoClient, err := config.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	mdb := mongoClient.Database(cfg.MongoDB)
	if err := config.EnsureMongoIndexes(ctx, mdb); err != nil {
		log.WithError(err).Fatal("MongoDB index setup failed")
	}
	log.Info("MongoDB connected")

	blobs := mustBlobStore(ctx, cfg, log)
	mailer := buildMailer(ctx, cfg, log)
	generator := buildLLM(ctx, cfg, log)
	if generator != nil {
		defer generator.Close()
	}

	var processor payments.Processor
	if cfg.StripeSecretKey != "" {
		processor = payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; checkout is disabled")
	}

	var indexer seo.Indexer
	if cfg.GoogleIndexingCredentials != "" {
		gi, err := seo.NewGoogleIndexer(ctx, cfg.GoogleIndexingCredentials)
		if err != nil {
			log.WithError(err).Warn("indexing client disabled")
		} else {
			indexer = gi
		}
	}
	var pinger seo.SitemapPinger
	if len(cfg.SitemapPingURLs) > 0 {
		pinger = seo.NewHTTPPinger(cfg.SitemapPingURLs)
	}

	var poster chat.Poster
	if cfg.DiscordWebhookURL != "" {
		poster = chat.NewDiscordWebhook(cfg.DiscordWebhookURL)
	}

	// Repositories & services
	store := pgrepo.NewStore(db)
	blogRepo := mongorepo.NewBlogRepo(mdb)
	redisCache := cache.NewRedisCache(rdb)
	notifier := notify.NewRedisNotifier(rdb, cfg.NotificationStream, log)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	userSvc := services.NewUserService(store.Users(), redisCache, tokens, notifier, log)
	appSvc := services.NewApplicationService(store, blobs, notifier, log)
	reviewSvc := services.NewReviewService(store, notifier, log)
	docSvc := services.NewDocumentService(store, blobs, log)
	paySvc := services.NewPaymentService(store, processor, notifier, services.PaymentConfig{
		SuccessURL:      cfg.CheckoutSuccessURL,
		CancelURL:       cfg.CheckoutCancelURL,
		AutoCreateDraft: cfg.AutoCreateDraft,
	}, log)
	seoSvc := services.NewSEOService(indexer, pinger, cfg.SiteURL, log)
	blogSvc := services.NewBlogService(blogRepo, redisCache, generator, seoSvc, notifier, services.BlogConfig{
		Topics:      cfg.BlogTopics,
		AutoPublish: cfg.BlogAutoPublish,
		SiteURL:     cfg.SiteURL,
	}, log)

	// Background workers
	pool := &workers.NotificationWorkerPool{
		Redis:      rdb,
		NumWorkers: cfg.NotifyWorkers,
		Chat:       poster,
		Mail:       mailer,
		Logger:     log,
		Stream:     cfg.NotificationStream,
	}
	if err := pool.Start(ctx); err != nil {
		log.WithError(err).Fatal("notification workers")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	sched := scheduler.New(log)
	if err := sched.Add("@every 5m", "ratelimit-sweep", func(context.Context) error {
		limiter.Sweep(time.Now())
		return nil
	}); err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	if cfg.BlogCronSpec != "" {
		if err := sched.Add(cfg.BlogCronSpec, "blog-generate", func(jobCtx context.Context) error {
			_, err := blogSvc.GenerateNext(jobCtx, time.Now().UTC())
			return err
		}); err != nil {
			log.WithError(err).Fatal("invalid BLOG_CRON_SPEC")
		}
	}
	sched.Start()

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(), middleware.CORS(cfg.CORSAllowedOrigins))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:        handlers.NewAuthHandler(userSvc),
		Application: handlers.NewApplicationHandler(appSvc, reviewSvc),
		Document:    handlers.NewDocumentHandler(docSvc),
		Payment:     handlers.NewPaymentHandler(paySvc),
		Admin:       handlers.NewAdminHandler(appSvc, reviewSvc, userSvc),
		Blog:        handlers.NewBlogHandler(blogSvc, seoSvc, cfg.CronSecret),
		Events:      handlers.NewEventsHandler(rdb, workers.AdminEventsChannel, cfg.CORSAllowedOrigins, log),

		Tokens:     tokens,
		Principals: userSvc,
		Limiter:    limiter,

		EnableTestPayments: !cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP shutdown")
	}
	sched.Stop(shutdownCtx)
}

func mustBlobStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) storage.BlobStore {
	switch cfg.StorageBackend {
	case "s3":
		s, err := storage.NewS3Store(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			log.WithError(err).Fatal("S3 init error")
		}
		return s
	default:
		s, err := storage.NewGCSStore(ctx, cfg.GCSBucket)
		if err != nil {
			log.WithError(err).Fatal("GCS init error")
		}
		return s
	}
}

func buildMailer(ctx context.Context, cfg *config.Config, log *logrus.Logger) mail.Sender {
	switch cfg.EmailProvider {
	case "gmail":
		g, err := mail.NewGmailSender(ctx, cfg.GmailClientID, cfg.GmailClientSecret, cfg.GmailRefreshToken, cfg.EmailFrom)
		if err != nil {
			log.WithError(err).Warn("gmail sender disabled")
			return mail.Nop{}
		}
		return g
	case "ses":
		s, err := mail.NewSESSender(ctx, cfg.AWSRegion, cfg.EmailFrom)
		if err != nil {
			log.WithError(err).Warn("ses sender disabled")
			return mail.Nop{}
		}
		return s
	default:
		return mail.Nop{}
	}
}

func buildLLM(ctx context.Context, cfg *config.Config, log *logrus.Logger) llm.Provider {
	if cfg.VertexProject == "" {
		log.Warn("VERTEX_PROJECT not set; blog generation is disabled")
		return nil
	}
	v, err := llm.NewVertexGemini(ctx, cfg.VertexProject, cfg.VertexLocation, cfg.VertexModel)
	if err != nil {
		log.WithError(err).Warn("blog generation disabled")
		return nil
	}
	return v
}
