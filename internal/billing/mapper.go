package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/offerflow/billing-service/internal/domain"
)

// mapEvent переводит событие Stripe в нейтральное представление.
// Нераспознанные типы помечаются EventIgnored, а не ошибкой: провайдер
// не должен бесконечно ретраить события, которые нас не интересуют.
func mapEvent(ev stripe.Event) (Event, error) {
	mapped := Event{
		ID:      ev.ID,
		RawType: string(ev.Type),
	}

	switch string(ev.Type) {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
			return Event{}, fmt.Errorf("failed to parse checkout session payload: %w", err)
		}
		mapped.Type = EventCheckoutCompleted
		mapped.Checkout = checkoutFromSession(&session)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("failed to parse subscription payload: %w", err)
		}
		mapped.Type = EventSubscriptionChanged
		mapped.Subscription = snapshotFromSubscription(&sub)
		if string(ev.Type) == "customer.subscription.deleted" {
			// Удаление подписки всегда означает отмену
			mapped.Subscription.Status = domain.SubscriptionStatusCanceled
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &invoice); err != nil {
			return Event{}, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		mapped.Type = EventInvoicePayment
		if invoice.Subscription != nil {
			mapped.SubscriptionID = invoice.Subscription.ID
		}

	default:
		mapped.Type = EventIgnored
	}

	return mapped, nil
}

// checkoutFromSession извлекает из checkout-сессии связку клиент-пользователь
func checkoutFromSession(session *stripe.CheckoutSession) *CheckoutCompleted {
	checkout := &CheckoutCompleted{
		UserID: session.ClientReferenceID,
		PlanID: domain.PlanID(session.Metadata[metadataPlanIDKey]),
	}
	if checkout.UserID == "" {
		checkout.UserID = session.Metadata[metadataUserIDKey]
	}
	if session.Customer != nil {
		checkout.CustomerID = session.Customer.ID
	}
	return checkout
}

// snapshotFromSubscription маппит подписку Stripe в снимок состояния.
// План берется из метаданных цены первой позиции; отсутствующие метаданные
// оставляют план пустым, решение об этом принимает Reconciler.
func snapshotFromSubscription(sub *stripe.Subscription) *domain.SubscriptionSnapshot {
	snap := &domain.SubscriptionSnapshot{
		SubscriptionID: sub.ID,
		Status:         mapStatus(sub.Status),
		PeriodStart:    time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:      time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}

	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil {
			snap.PlanID = domain.PlanID(price.Metadata[metadataPlanIDKey])
		}
	}
	if snap.PlanID == "" {
		// Метаданные подписки заполняются при создании checkout-сессии
		snap.PlanID = domain.PlanID(sub.Metadata[metadataPlanIDKey])
	}

	return snap
}

// mapStatus переводит статус подписки Stripe в доменный статус
func mapStatus(status stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusIncomplete:
		return domain.SubscriptionStatusIncomplete
	default:
		// Неизвестный статус не дает прав: любой статус вне
		// {active, trialing} схлопывается в бесплатный набор
		return domain.SubscriptionStatus(status)
	}
}
