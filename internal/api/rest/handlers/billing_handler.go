package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/middleware"
	"github.com/offerflow/billing-service/internal/service"
	"github.com/offerflow/billing-service/pkg/logger"
)

// BillingHandler обрабатывает HTTP запросы, связанные с подпиской пользователя.
type BillingHandler struct {
	reconciler service.Reconciler
	gate       service.Gate
	log        *logger.Logger
}

// NewBillingHandler создает новый экземпляр BillingHandler.
func NewBillingHandler(reconciler service.Reconciler, gate service.Gate, log *logger.Logger) *BillingHandler {
	return &BillingHandler{
		reconciler: reconciler,
		gate:       gate,
		log:        log,
	}
}

// --- DTO ---

type CreateCheckoutSessionRequest struct {
	PlanID string `json:"plan_id" binding:"required,planid"`
}

type SessionResponse struct {
	URL string `json:"url"`
}

type SubscriptionResponse struct {
	PlanID        string                   `json:"plan_id"`
	Status        string                   `json:"status"`
	PeriodStart   string                   `json:"current_period_start,omitempty"`
	PeriodEnd     string                   `json:"current_period_end,omitempty"`
	OffersCreated int                      `json:"offers_created"`
	Entitlements  domain.EntitlementBundle `json:"entitlements"`
}

// --- Обработчики ---

// CreateCheckoutSession обрабатывает POST /billing/checkout-session
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var requestBody CreateCheckoutSessionRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		h.log.Warnw("Invalid checkout request", "userID", userID, "error", err)
		respondError(c, h.log, &domain.ValidationError{Field: "plan_id", Message: "a purchasable plan_id is required"})
		return
	}

	url, err := h.reconciler.InitiateCheckout(ctx, userID, middleware.UserEmail(c), domain.PlanID(requestBody.PlanID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{URL: url})
}

// CreatePortalSession обрабатывает POST /billing/portal-session
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	url, err := h.reconciler.InitiatePortal(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, SessionResponse{URL: url})
}

// GetSubscription обрабатывает GET /billing/subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	rec, bundle, err := h.gate.Resolve(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp := SubscriptionResponse{
		PlanID:       string(domain.PlanFree),
		Status:       string(domain.SubscriptionStatusNone),
		Entitlements: bundle,
	}
	if rec != nil {
		resp.PlanID = string(rec.PlanID)
		resp.Status = string(rec.Status)
		resp.PeriodStart = rec.CurrentPeriodStart.Format(time.RFC3339)
		resp.PeriodEnd = rec.CurrentPeriodEnd.Format(time.RFC3339)
		resp.OffersCreated = rec.OffersCreated
	}

	c.JSON(http.StatusOK, resp)
}
