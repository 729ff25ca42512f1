package router

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/homebase/referral-api/internal/middleware"
	"github.com/homebase/referral-api/pkg/logger"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// AdminHandler registers routes that require admin authentication.
type AdminHandler interface {
	RegisterAdminRoutes(*gin.RouterGroup)
}

// FeatureHandler has both a public and an admin surface.
type FeatureHandler interface {
	Handler
	AdminHandler
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	webhookAuth *middleware.WebhookAuth
	healthH     Handler
	billingH    FeatureHandler
	referralH   FeatureHandler
	payoutH     FeatureHandler
	reviewH     AdminHandler
	metrics     *routerMetrics
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type Config struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MetricsPrefix  string
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	webhookAuth *middleware.WebhookAuth,
	healthH Handler,
	billingH FeatureHandler,
	referralH FeatureHandler,
	payoutH FeatureHandler,
	reviewH AdminHandler,
	log *logger.Logger,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	r := &Router{
		engine:      engine,
		auth:        auth,
		webhookAuth: webhookAuth,
		healthH:     healthH,
		billingH:    billingH,
		referralH:   referralH,
		payoutH:     payoutH,
		reviewH:     reviewH,
		metrics:     initRouterMetrics(config.MetricsPrefix),
	}

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		r.metricsMiddleware(),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   config.RateLimitRPS,
		Burst: config.RateLimitBurst,
	})
	engine.Use(rateLimiter.RateLimit())

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.healthH.RegisterRoutes(api)

	// Billing webhook, guarded by the provider's shared token.
	webhook := api.Group("")
	webhook.Use(r.webhookAuth.Authenticate())
	r.billingH.RegisterRoutes(webhook)

	// Public referral surfaces.
	r.referralH.RegisterRoutes(api)
	r.payoutH.RegisterRoutes(api)

	// Admin surfaces.
	admin := api.Group("")
	admin.Use(r.auth.Authenticate())
	r.referralH.RegisterAdminRoutes(admin)
	r.payoutH.RegisterAdminRoutes(admin)
	r.reviewH.RegisterAdminRoutes(admin)
	r.billingH.RegisterAdminRoutes(admin)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func initRouterMetrics(prefix string) *routerMetrics {
	return &routerMetrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: prefix + "_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		status := fmt.Sprintf("%d", c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= 400 {
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "http").Inc()
		}
	}
}
