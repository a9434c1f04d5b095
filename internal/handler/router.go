// Package handler содержит HTTP обработчики REST API витрины.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/storefront/internal/gateway"
	"example.com/storefront/internal/middleware"
	"example.com/storefront/internal/service"
	"example.com/storefront/pkg/metrics"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — HTTP роутер витрины.
type Router struct {
	engine         *gin.Engine
	checkout       service.CheckoutService
	reconcile      service.ReconcileService
	fulfillment    service.FulfillmentService
	notifications  service.NotificationService
	rewards        service.RewardsService
	verifier       *gateway.WebhookVerifier
	authMW         *middleware.AuthMiddleware
	rateLimitMW    *middleware.RateLimitMiddleware
	readinessCheck ReadinessChecker // опциональная проверка готовности
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	Checkout       service.CheckoutService
	Reconcile      service.ReconcileService
	Fulfillment    service.FulfillmentService
	Notifications  service.NotificationService
	Rewards        service.RewardsService
	Verifier       *gateway.WebhookVerifier
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	ReadinessCheck ReadinessChecker // опциональная проверка готовности для /readyz
	Debug          bool             // Режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(gin.Recovery())

	// CORS — браузерная витрина живёт на другом домене
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	// Security headers
	engine.Use(middleware.SecurityHeaders())

	// OpenTelemetry tracing — spans для каждого запроса
	engine.Use(otelgin.Middleware("storefront"))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware("storefront"))

	r := &Router{
		engine:         engine,
		checkout:       cfg.Checkout,
		reconcile:      cfg.Reconcile,
		fulfillment:    cfg.Fulfillment,
		notifications:  cfg.Notifications,
		rewards:        cfg.Rewards,
		verifier:       cfg.Verifier,
		authMW:         cfg.AuthMW,
		rateLimitMW:    cfg.RateLimitMW,
		readinessCheck: cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	// Health endpoints (без rate limiting и auth)
	r.engine.GET("/healthz", r.livenessCheck)         // k8s liveness probe
	r.engine.GET("/readyz", r.readinessCheckHandler) // k8s readiness probe

	// API v1
	v1 := r.engine.Group("/api/v1")

	// Rate limiting на уровне API (если включен)
	if r.rateLimitMW != nil {
		v1.Use(r.rateLimitMW.Handle())
	}

	// === Checkout и заказы (доступны гостям) ===
	checkoutHandler := NewCheckoutHandler(r.checkout)
	orderHandler := NewOrderHandler(r.checkout, r.reconcile)

	public := v1.Group("")
	if r.authMW != nil {
		public.Use(r.authMW.Optional())
	}
	{
		public.POST("/checkout", checkoutHandler.Checkout)
		public.GET("/orders/:number", orderHandler.GetOrder)
		public.PATCH("/orders/:number", orderHandler.ConfirmReturn)
	}

	// === Вебхук платёжного шлюза (подпись вместо JWT) ===
	webhookHandler := NewWebhookHandler(r.reconcile, r.verifier)
	v1.POST("/payment-events", webhookHandler.HandleEvent)

	// === Личный кабинет (требуется JWT) ===
	meHandler := NewCustomerHandler(r.checkout, r.notifications, r.rewards)
	me := v1.Group("/customers/me")
	if r.authMW != nil {
		me.Use(r.authMW.Require())
	}
	{
		me.GET("/orders", meHandler.ListOrders)
		me.GET("/notifications", meHandler.ListNotifications)
		me.POST("/notifications/read-all", meHandler.MarkAllNotificationsRead)
		me.POST("/notifications/:id/read", meHandler.MarkNotificationRead)
		me.GET("/rewards", meHandler.GetRewards)
	}

	// === Админка фулфилмента (требуется роль admin) ===
	adminHandler := NewAdminHandler(r.fulfillment)
	admin := v1.Group("/admin")
	if r.authMW != nil {
		admin.Use(r.authMW.RequireAdmin())
	}
	{
		admin.PUT("/orders/:id", adminHandler.TransitionOrder)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// livenessCheck — liveness probe для Kubernetes.
// Возвращает 200 OK если процесс жив.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — readiness probe для Kubernetes.
// Возвращает 200 OK если все зависимости доступны.
func (r *Router) readinessCheckHandler(c *gin.Context) {
	// Если ReadinessChecker не установлен — считаем сервис готовым
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
