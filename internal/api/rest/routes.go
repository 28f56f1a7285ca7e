package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/offerflow/billing-service/internal/api/rest/handlers"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/middleware"
	"github.com/offerflow/billing-service/pkg/logger"
)

// Handlers все HTTP-обработчики сервиса
type Handlers struct {
	Billing *handlers.BillingHandler
	Webhook *handlers.WebhookHandler
	Offer   *handlers.OfferHandler
	Assist  *handlers.AssistHandler
}

// NewRouter настраивает Gin роутер со всеми маршрутами API
func NewRouter(h Handlers, auth *middleware.JWTMiddleware, registry *prometheus.Registry, log *logger.Logger) *gin.Engine {
	registerValidators(log)

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())

	// Служебные маршруты
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Вебхуки провайдера: аутентификация по подписи, не по токену
	router.POST("/webhooks/stripe", h.Webhook.HandleStripeWebhook)

	// Группа API с аутентификацией
	api := router.Group("/api/v1")
	api.Use(auth.RequireAuth())
	{
		billing := api.Group("/billing")
		{
			billing.POST("/checkout-session", h.Billing.CreateCheckoutSession)
			billing.POST("/portal-session", h.Billing.CreatePortalSession)
			billing.GET("/subscription", h.Billing.GetSubscription)
		}

		offers := api.Group("/offers")
		{
			offers.POST("/usage", h.Offer.RecordOfferCreated)
		}

		support := api.Group("/support")
		{
			support.POST("/ask", h.Assist.Ask)
		}
	}

	log.Infow("API routes successfully configured")
	return router
}

// registerValidators регистрирует доменные валидаторы в движке биндинга Gin
func registerValidators(log *logger.Logger) {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		log.Warn("Unexpected binding validator engine, custom validators not registered")
		return
	}
	// planid: строка является идентификатором покупаемого плана
	_ = v.RegisterValidation("planid", func(fl validator.FieldLevel) bool {
		return domain.PlanID(fl.Field().String()).IsPaid()
	})
}
