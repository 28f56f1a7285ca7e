// Package assist содержит ассистента поддержки: бот отвечает на вопросы
// пользователей о планах и биллинге через OpenAI-совместимый API.
package assist

import (
	"context"

	"github.com/offerflow/billing-service/internal/domain"
)

// Базовые знания ассистента о планах и биллинге. Ассистент отвечает только
// на вопросы о продукте и не обсуждает посторонние темы.
const systemPrompt = `You are the OfferFlow billing support assistant. OfferFlow is a SaaS for creating and sending commercial offers.

Plans:
- Free: 5 offers per billing period, PDF export, dashboard access, community support. No custom branding, watermark stays on documents.
- Pro (monthly or yearly): unlimited offers, custom branding, watermark removal, saved templates and customer lists, PDF and PNG export, email support.
- Business (monthly or yearly): everything in Pro plus analytics, XLSX export, up to 10 team members, priority support.

Billing facts:
- New subscribers get a 30-day free trial, available once per account.
- Payments and invoices are handled by Stripe; users manage cards, invoices and cancellation in the billing portal.
- After cancellation the subscription stays active until the end of the paid period.
- A failed payment gives the subscription past_due status; access closes to the Free level until payment succeeds.

Answer briefly and concretely. If the question is unrelated to OfferFlow plans or billing, say you can only help with billing questions. If the user needs account-specific help you cannot resolve, direct them to support@offerflow.io.`

// Assistant отвечает на вопросы пользователей о планах и биллинге
type Assistant interface {
	Ask(ctx context.Context, question string) (string, error)
}

// disabledAssistant заглушка на случай, когда API-ключ не настроен
type disabledAssistant struct{}

func (disabledAssistant) Ask(ctx context.Context, question string) (string, error) {
	return "", &domain.ConfigurationError{Detail: "support assistant is not configured"}
}

// NewDisabled возвращает ассистента-заглушку
func NewDisabled() Assistant {
	return disabledAssistant{}
}
