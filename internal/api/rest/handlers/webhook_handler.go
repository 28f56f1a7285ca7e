package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerflow/billing-service/internal/billing"
	"github.com/offerflow/billing-service/internal/service"
	"github.com/offerflow/billing-service/pkg/logger"
)

const (
	// Ограничение на размер тела запроса вебхука (Stripe рекомендует ~65kb)
	maxRequestBodySize = int64(65536)
)

// WebhookHandler обрабатывает входящие вебхуки биллинг-провайдера.
type WebhookHandler struct {
	billing    billing.Client
	reconciler service.Reconciler
	log        *logger.Logger
}

// NewWebhookHandler создает новый экземпляр WebhookHandler.
func NewWebhookHandler(billingClient billing.Client, reconciler service.Reconciler, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:    billingClient,
		reconciler: reconciler,
		log:        log,
	}
}

// HandleStripeWebhook - обработчик для Gin, принимающий вебхуки Stripe.
// После успешной проверки подписи провайдер всегда получает 200: ошибки
// применения события остаются внутри сервиса, а не в очереди повторов Stripe.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	ctx := c.Request.Context()

	// Тело читается один раз, с ограничением размера
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook request body", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Cannot read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		h.log.Warnw("Missing Stripe-Signature header")
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	event, err := h.billing.VerifyEvent(payload, sigHeader)
	if err != nil {
		h.log.Errorw("Webhook signature verification failed", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed"})
		return
	}

	h.log.Infow("Received verified webhook event", "eventID", event.ID, "eventType", event.RawType)

	if err := h.reconciler.ProcessEvent(ctx, event); err != nil {
		// Событие принято, но не применено: логируем и все равно отвечаем 200,
		// чтобы провайдер не зациклился на повторных доставках
		h.log.Errorw("Failed to process webhook event", "error", err, "eventID", event.ID, "eventType", event.RawType)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
