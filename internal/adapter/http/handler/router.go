package handler

import (
	"hosted-payment-gateway/internal/adapter/http/middleware"
	redisStore "hosted-payment-gateway/internal/adapter/storage/redis"
	"hosted-payment-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc            ports.AuthService
	PaymentSvc         ports.PaymentService
	StatusSvc          ports.StatusService
	FormSvc            ports.FormService
	TeamSvc            ports.TeamService
	RateLimitStore     *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimitPerMinute int
	HealthCheckers     []ports.HealthChecker
	Metrics            ports.Metrics
	Registry           *prometheus.Registry // nil = /metrics disabled
	Logger             zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Registry != nil {
		h := promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})
		r.GET("/metrics", gin.WrapH(h))
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules(deps.RateLimitPerMinute)

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Metrics, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Merchant API (token authenticated inside the services) ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	statusHandler := NewStatusHandler(deps.StatusSvc)

	v1.POST("/paymentinit/init", rl("payment_init"), paymentHandler.Init)
	v1.POST("/paymentconfirm/confirm", rl("payment_confirm"), paymentHandler.Confirm)
	v1.POST("/paymentcancel/cancel", rl("payment_cancel"), paymentHandler.Cancel)
	v1.POST("/paymentcheck/check", rl("payment_check"), statusHandler.Check)
	v1.GET("/paymentcheck/status", rl("payment_check"), statusHandler.Status)

	// --- Hosted card form (session authenticated) ---
	formHandler := NewFormHandler(deps.FormSvc)
	form := v1.Group("/paymentform")
	{
		form.GET("/render/:paymentId", formHandler.Render)
		form.POST("/submit", rl("form_submit"), formHandler.Submit)
		form.GET("/result/:paymentId", formHandler.ResultPage)
	}

	// --- Teams ---
	teamHandler := NewTeamHandler(deps.TeamSvc)
	v1.POST("/teamregistration/register", rl("team_register"), teamHandler.Register)

	basicAuth := middleware.BasicAuth(deps.AuthSvc)
	v1.GET("/teams/me", basicAuth, teamHandler.Me)

	adminAuth := middleware.AdminAuth(deps.AuthSvc)
	admin := v1.Group("/admin", adminAuth)
	{
		admin.PUT("/teams/:slug", teamHandler.AdminUpdate)
	}

	return r
}
