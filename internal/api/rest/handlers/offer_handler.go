package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/middleware"
	"github.com/offerflow/billing-service/internal/service"
	"github.com/offerflow/billing-service/pkg/logger"
)

// OfferHandler учитывает использование квоты офферов.
// Сами офферы живут в другом сервисе, здесь только биллинг-учет.
type OfferHandler struct {
	gate       service.Gate
	reconciler service.Reconciler
	log        *logger.Logger
}

// NewOfferHandler создает новый экземпляр OfferHandler.
func NewOfferHandler(gate service.Gate, reconciler service.Reconciler, log *logger.Logger) *OfferHandler {
	return &OfferHandler{
		gate:       gate,
		reconciler: reconciler,
		log:        log,
	}
}

type UsageResponse struct {
	OffersCreated      int `json:"offers_created"`
	MaxOffersPerPeriod int `json:"max_offers_per_period"`
}

// RecordOfferCreated обрабатывает POST /offers/usage: проверяет квоту
// текущего периода и атомарно увеличивает счетчик созданных офферов.
func (h *OfferHandler) RecordOfferCreated(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	rec, bundle, err := h.gate.Resolve(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	used := 0
	if rec != nil {
		used = rec.OffersCreated
	}
	if !bundle.AllowsMoreOffers(used) {
		respondError(c, h.log, &domain.AuthorizationError{Predicate: "create_offer"})
		return
	}

	// Счетчик сам по себе записей не создает: для нового пользователя
	// запись по умолчанию гарантируется явно
	if rec == nil {
		if _, err := h.reconciler.EnsureRecord(ctx, userID); err != nil {
			respondError(c, h.log, err)
			return
		}
	}

	count, err := h.gate.IncrementOfferCount(ctx, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, UsageResponse{
		OffersCreated:      count,
		MaxOffersPerPeriod: bundle.MaxOffersPerPeriod,
	})
}
