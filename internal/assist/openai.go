package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

// openAIAssistant клиент OpenAI-совместимого chat completions API
type openAIAssistant struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

// NewOpenAIAssistant создает ассистента поверх OpenAI-совместимого API.
// Без API-ключа возвращается заглушка: сервис работает, ассистент отключен.
func NewOpenAIAssistant(cfg config.AssistConfig, log *logger.Logger) Assistant {
	if cfg.APIKey == "" {
		log.Warn("Support assistant disabled: no API key configured")
		return NewDisabled()
	}
	return &openAIAssistant{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		log: log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Ask отправляет вопрос пользователя в chat completions API
func (a *openAIAssistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", &domain.ValidationError{Field: "question", Message: "question must not be empty"}
	}

	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: question},
		},
		MaxTokens:   500,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return "", &domain.ExternalServiceError{Service: "assistant", Message: "request failed", OriginalErr: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.ExternalServiceError{Service: "assistant", Message: "failed to read response", OriginalErr: err}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatError
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			a.log.Warnw("Assistant API error", "status", resp.StatusCode, "message", errResp.Error.Message)
			return "", &domain.ExternalServiceError{
				Service: "assistant",
				Message: fmt.Sprintf("API error (%d): %s", resp.StatusCode, errResp.Error.Message),
			}
		}
		return "", &domain.ExternalServiceError{
			Service: "assistant",
			Message: fmt.Sprintf("API error (%d)", resp.StatusCode),
		}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &domain.ExternalServiceError{Service: "assistant", Message: "failed to parse response", OriginalErr: err}
	}
	if len(chatResp.Choices) == 0 {
		return "", &domain.ExternalServiceError{Service: "assistant", Message: "no response choices returned"}
	}

	return chatResp.Choices[0].Message.Content, nil
}
