package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/offerflow/billing-service/internal/assist"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/middleware"
	"github.com/offerflow/billing-service/pkg/logger"
)

// AssistHandler обрабатывает вопросы пользователей к ассистенту поддержки.
type AssistHandler struct {
	assistant assist.Assistant
	log       *logger.Logger
}

// NewAssistHandler создает новый экземпляр AssistHandler.
func NewAssistHandler(assistant assist.Assistant, log *logger.Logger) *AssistHandler {
	return &AssistHandler{
		assistant: assistant,
		log:       log,
	}
}

type AskRequest struct {
	Question string `json:"question" binding:"required,max=2000"`
}

type AskResponse struct {
	Answer string `json:"answer"`
}

// Ask обрабатывает POST /support/ask
func (h *AssistHandler) Ask(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	var requestBody AskRequest
	if err := c.ShouldBindJSON(&requestBody); err != nil {
		respondError(c, h.log, &domain.ValidationError{Field: "question", Message: "a non-empty question up to 2000 characters is required"})
		return
	}

	answer, err := h.assistant.Ask(ctx, requestBody.Question)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Debugw("Support question answered", "userID", userID)
	c.JSON(http.StatusOK, AskResponse{Answer: answer})
}
