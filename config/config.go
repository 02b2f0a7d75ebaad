package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv string
	Port   string

	PostgresURI string
	RedisAddr   string
	MongoURI    string
	MongoDB     string

	JWTSecret string
	JWTTTL    time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       int
	RateLimitBurst     int

	StorageBackend string // gcs|s3
	GCSBucket      string
	S3Bucket       string
	AWSRegion      string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	AutoCreateDraft     bool

	DiscordWebhookURL  string
	EmailProvider      string // gmail|ses|""
	EmailFrom          string
	GmailClientID      string
	GmailClientSecret  string
	GmailRefreshToken  string
	NotifyWorkers      int
	NotificationStream string

	SiteURL                   string
	GoogleIndexingCredentials string
	SitemapPingURLs           []string

	CronSecret      string
	BlogCronSpec    string
	BlogTopics      []string
	BlogAutoPublish bool

	VertexProject  string
	VertexLocation string
	VertexModel    string
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

var defaultBlogTopics = []string{
	"How to write an ERAS personal statement that program directors remember",
	"Choosing your three most meaningful ERAS experiences",
	"Program signaling strategy for residency applicants",
	"Common ERAS experience description mistakes",
	"Preparing your CV and transcripts for ERAS",
	"How letters of recommendation are read by residency programs",
}

// Load reads configuration from the environment (and a local .env, if any).
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	redisAddr := v.GetString("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = v.GetString("REDIS_URI")
	}
	if redisAddr == "" {
		redisAddr = v.GetString("REDIS_URL")
	}

	cfg := &Config{
		AppEnv: strings.ToLower(v.GetString("APP_ENV")),
		Port:   v.GetString("PORT"),

		PostgresURI: v.GetString("POSTGRES_URI"),
		RedisAddr:   redisAddr,
		MongoURI:    v.GetString("MONGO_URI"),
		MongoDB:     v.GetString("MONGO_DB"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		RateLimitRPS:       v.GetInt("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		GCSBucket:      v.GetString("GCS_BUCKET"),
		S3Bucket:       v.GetString("S3_BUCKET"),
		AWSRegion:      v.GetString("AWS_REGION"),

		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  v.GetString("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   v.GetString("CHECKOUT_CANCEL_URL"),
		AutoCreateDraft:     v.GetBool("AUTO_CREATE_DRAFT"),

		DiscordWebhookURL:  v.GetString("DISCORD_WEBHOOK_URL"),
		EmailProvider:      strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		EmailFrom:          v.GetString("EMAIL_FROM"),
		GmailClientID:      v.GetString("GMAIL_CLIENT_ID"),
		GmailClientSecret:  v.GetString("GMAIL_CLIENT_SECRET"),
		GmailRefreshToken:  v.GetString("GMAIL_REFRESH_TOKEN"),
		NotifyWorkers:      v.GetInt("NOTIFY_WORKERS"),
		NotificationStream: v.GetString("NOTIFICATION_STREAM"),

		SiteURL:                   strings.TrimRight(v.GetString("SITE_URL"), "/"),
		GoogleIndexingCredentials: v.GetString("GOOGLE_INDEXING_CREDENTIALS"),
		SitemapPingURLs:           splitList(v.GetString("SITEMAP_PING_URLS")),

		CronSecret:      v.GetString("CRON_SECRET"),
		BlogCronSpec:    v.GetString("BLOG_CRON_SPEC"),
		BlogTopics:      splitTopics(v.GetString("BLOG_TOPICS")),
		BlogAutoPublish: v.GetBool("BLOG_AUTOPUBLISH"),

		VertexProject:  v.GetString("VERTEX_PROJECT"),
		VertexLocation: v.GetString("VERTEX_LOCATION"),
		VertexModel:    v.GetString("VERTEX_MODEL"),
	}
	if len(cfg.BlogTopics) == 0 {
		cfg.BlogTopics = defaultBlogTopics
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("MONGO_DB", "erasreview")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("STORAGE_BACKEND", "gcs")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AUTO_CREATE_DRAFT", true)
	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFICATION_STREAM", "notifications:stream")
	v.SetDefault("SITE_URL", "http://localhost:3000")
	v.SetDefault("VERTEX_LOCATION", "us-central1")
	v.SetDefault("VERTEX_MODEL", "gemini-1.5-flash")
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}
	if c.PostgresURI == "" {
		return errors.New("POSTGRES_URI environment variable is not set")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR (or REDIS_URI/REDIS_URL) environment variable is not set")
	}
	if c.StorageBackend != "gcs" && c.StorageBackend != "s3" {
		return errors.New("STORAGE_BACKEND must be gcs or s3")
	}
	if c.IsProduction() && c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// topics contain commas, so they are separated by "|"
func splitTopics(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
