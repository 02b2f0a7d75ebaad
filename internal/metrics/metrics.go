package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	ApplicationsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "applications_submitted_total",
			Help: "Applications moved into review",
		},
	)

	PaymentsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Payments confirmed as succeeded (first confirmation only)",
		},
	)

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Notification deliveries by kind and result",
		},
		[]string{"kind", "result"},
	)

	BlogPostsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_posts_generated_total",
			Help: "Blog generation runs by result",
		},
		[]string{"result"},
	)
)
