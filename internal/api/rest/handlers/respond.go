package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

// respondError преобразует доменную ошибку в HTTP-ответ.
// Внутренние детали (конфигурация, внешние сервисы) не уходят клиенту.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	status := domain.StatusOf(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
		message = "internal server error"
		if errors.Is(err, domain.ErrExternalService) {
			message = "billing provider is temporarily unavailable"
		}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
