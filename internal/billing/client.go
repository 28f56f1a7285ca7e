// Package billing изолирует взаимодействие с биллинг-провайдером.
// Остальной код работает с нейтральными типами пакета и не знает о Stripe.
package billing

import (
	"context"

	"github.com/offerflow/billing-service/internal/domain"
)

// Ключи метаданных, которыми мы связываем объекты Stripe с нашими сущностями
const (
	metadataUserIDKey = "user_id"
	metadataPlanIDKey = "plan_id"
)

// EventType категория вебхук-события после маппинга из типа Stripe
type EventType string

const (
	// EventCheckoutCompleted оплата на hosted-странице завершена
	EventCheckoutCompleted EventType = "checkout.completed"

	// EventSubscriptionChanged подписка создана, обновлена или удалена
	EventSubscriptionChanged EventType = "subscription.changed"

	// EventInvoicePayment платеж по инвойсу прошел или не прошел
	EventInvoicePayment EventType = "invoice.payment"

	// EventIgnored событие не влияет на состояние и пропускается
	EventIgnored EventType = "ignored"
)

// CheckoutCompleted данные завершенной checkout-сессии
type CheckoutCompleted struct {
	CustomerID string
	UserID     string
	PlanID     domain.PlanID
}

// Event вебхук-событие провайдера в нейтральном представлении
type Event struct {
	ID      string
	Type    EventType
	RawType string // исходный тип события Stripe, для логов

	// Заполнено для EventCheckoutCompleted
	Checkout *CheckoutCompleted

	// Заполнено для EventSubscriptionChanged
	Subscription *domain.SubscriptionSnapshot

	// Заполнено для EventInvoicePayment
	SubscriptionID string
}

// CheckoutParams параметры создания hosted checkout-сессии
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	PlanID     domain.PlanID
	TrialDays  int // 0 = без пробного периода
}

// Client определяет методы для взаимодействия с биллинг-провайдером
type Client interface {
	// CreateCustomer создает клиента у провайдера и возвращает его идентификатор
	CreateCustomer(ctx context.Context, userID, email string) (string, error)

	// CreateCheckoutSession создает hosted checkout-сессию и возвращает ее URL
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession создает сессию billing-портала и возвращает ее URL
	CreatePortalSession(ctx context.Context, customerID string) (string, error)

	// GetSubscription запрашивает актуальный снимок подписки у провайдера
	GetSubscription(ctx context.Context, subscriptionID string) (*domain.SubscriptionSnapshot, error)

	// VerifyEvent проверяет подпись вебхук-события и маппит его в Event.
	// Невалидная подпись — ошибка, состояние при этом не меняется.
	VerifyEvent(payload []byte, signature string) (Event, error)
}
