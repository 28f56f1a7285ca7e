package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/offerflow/billing-service/internal/billing"
	"github.com/offerflow/billing-service/internal/catalog"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/events"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

// Reconciler единственный писатель жизненных полей записи подписки.
// Синхронизирует запись с состоянием биллинг-провайдера: принимает
// checkout-запросы пользователя и асинхронные вебхук-события.
type Reconciler interface {
	// EnsureRecord идемпотентно создает запись подписки по умолчанию
	EnsureRecord(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)

	// InitiateCheckout создает hosted checkout-сессию для платного плана
	// и возвращает ее URL
	InitiateCheckout(ctx context.Context, userID, email string, planID domain.PlanID) (string, error)

	// InitiatePortal создает сессию billing-портала и возвращает ее URL
	InitiatePortal(ctx context.Context, userID string) (string, error)

	// ProcessEvent применяет проверенное вебхук-событие к записи подписки.
	// Подпись события уже проверена на транспортном уровне.
	ProcessEvent(ctx context.Context, event billing.Event) error
}

// reconciler реализация Reconciler
type reconciler struct {
	store     repository.SubscriptionStore
	ledger    repository.EventLedger
	billing   billing.Client
	catalog   *catalog.Catalog
	producer  events.Producer
	metrics   metrics.BillingMetrics
	trialDays int
	log       *logger.Logger
}

// NewReconciler создает новый Reconciler
func NewReconciler(
	store repository.SubscriptionStore,
	ledger repository.EventLedger,
	billingClient billing.Client,
	cat *catalog.Catalog,
	producer events.Producer,
	m metrics.BillingMetrics,
	trialDays int,
	log *logger.Logger,
) Reconciler {
	return &reconciler{
		store:     store,
		ledger:    ledger,
		billing:   billingClient,
		catalog:   cat,
		producer:  producer,
		metrics:   m,
		trialDays: trialDays,
		log:       log,
	}
}

// EnsureRecord идемпотентно создает запись подписки по умолчанию.
// Единая точка ленивого создания для всех входов в систему.
func (r *reconciler) EnsureRecord(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	if userID == "" {
		return nil, &domain.AuthenticationError{Reason: "missing user identity"}
	}

	rec, created, err := r.store.EnsureRecord(ctx, userID)
	if err != nil {
		return nil, err
	}
	if created {
		r.log.Infow("Created default subscription record", "userID", userID)
	}
	return rec, nil
}

// InitiateCheckout создает hosted checkout-сессию для платного плана.
// Ссылка на клиента Stripe создается один раз и сохраняется сразу же,
// чтобы повторные попытки checkout переиспользовали ее.
func (r *reconciler) InitiateCheckout(ctx context.Context, userID, email string, planID domain.PlanID) (string, error) {
	if userID == "" {
		return "", &domain.AuthenticationError{Reason: "missing user identity"}
	}
	if !planID.IsPaid() {
		r.log.Warnw("Checkout requested for unknown or free plan", "userID", userID, "plan", planID)
		return "", &domain.ValidationError{Field: "plan_id", Message: "unknown or non-purchasable plan: " + string(planID)}
	}

	priceID, err := r.catalog.PriceID(planID)
	if err != nil {
		// Детали конфигурационной ошибки остаются в логах,
		// наружу уйдет только общий ответ
		r.log.Errorw("Checkout misconfiguration", "error", err, "plan", planID)
		return "", err
	}

	// Право на триал определяется до создания записи: триал доступен
	// только пользователю, у которого записи не было никогда
	rec, created, err := r.store.EnsureRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	trialEligible := created

	customerID := rec.StripeCustomerID
	if customerID == "" {
		customerID, err = r.billing.CreateCustomer(ctx, userID, email)
		if err != nil {
			return "", err
		}
		// Сохраняем ссылку сразу: упавший после этого шага checkout
		// при повторе не создаст второго клиента
		if err := r.store.SetCustomerID(ctx, userID, customerID); err != nil {
			return "", err
		}
	}

	trialDays := 0
	if trialEligible {
		trialDays = r.trialDays
	}

	url, err := r.billing.CreateCheckoutSession(ctx, billing.CheckoutParams{
		CustomerID: customerID,
		PriceID:    priceID,
		UserID:     userID,
		PlanID:     planID,
		TrialDays:  trialDays,
	})
	if err != nil {
		return "", err
	}

	r.metrics.IncCheckoutSession(string(planID))
	r.log.Infow("Checkout session initiated",
		"userID", userID, "plan", planID, "trialEligible", trialEligible)
	return url, nil
}

// InitiatePortal создает сессию billing-портала для пользователя
func (r *reconciler) InitiatePortal(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", &domain.AuthenticationError{Reason: "missing user identity"}
	}

	rec, err := r.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", &domain.NotFoundError{Entity: "subscription record", ID: userID}
		}
		return "", err
	}
	if rec.StripeCustomerID == "" {
		return "", &domain.NotFoundError{Entity: "billing customer", ID: userID}
	}

	return r.billing.CreatePortalSession(ctx, rec.StripeCustomerID)
}

// ProcessEvent применяет вебхук-событие к записи подписки.
// Доставка событий at-least-once и без гарантии порядка: дубликаты
// отсекает журнал, конфликт версий решается last-write-wins.
func (r *reconciler) ProcessEvent(ctx context.Context, event billing.Event) error {
	if event.Type == billing.EventIgnored {
		r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeIgnored)
		r.log.Debugw("Ignored webhook event", "type", event.RawType, "eventID", event.ID)
		return nil
	}

	first, err := r.ledger.MarkProcessed(ctx, event.ID)
	if err != nil {
		return err
	}
	if !first {
		r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeDuplicate)
		r.log.Infow("Skipping duplicate webhook event", "type", event.RawType, "eventID", event.ID)
		return nil
	}

	switch event.Type {
	case billing.EventCheckoutCompleted:
		return r.processCheckoutCompleted(ctx, event)
	case billing.EventSubscriptionChanged:
		return r.applySnapshot(ctx, event, event.Subscription)
	case billing.EventInvoicePayment:
		return r.processInvoicePayment(ctx, event)
	default:
		r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeIgnored)
		return nil
	}
}

// processCheckoutCompleted привязывает ссылку клиента Stripe к пользователю.
// План и статус здесь не трогаем: их принесут события подписки.
func (r *reconciler) processCheckoutCompleted(ctx context.Context, event billing.Event) error {
	checkout := event.Checkout
	if checkout == nil || checkout.UserID == "" || checkout.CustomerID == "" {
		r.dropEvent(event, "checkout event without user or customer reference")
		return nil
	}

	if _, _, err := r.store.EnsureRecord(ctx, checkout.UserID); err != nil {
		return err
	}
	if err := r.store.SetCustomerID(ctx, checkout.UserID, checkout.CustomerID); err != nil {
		return err
	}

	r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeApplied)
	r.log.Infow("Linked billing customer to user",
		"userID", checkout.UserID, "stripeCustomerID", checkout.CustomerID, "eventID", event.ID)
	return nil
}

// processInvoicePayment обрабатывает события платежей по инвойсам.
// Сам инвойс не содержит полного состояния подписки, поэтому подписка
// перечитывается у провайдера и применяется как обычное обновление.
// Неуспешный платеж не выставляет статус напрямую: авторитетный статус
// (past_due/unpaid) принесет следующее событие подписки.
func (r *reconciler) processInvoicePayment(ctx context.Context, event billing.Event) error {
	if event.SubscriptionID == "" {
		r.dropEvent(event, "invoice event without subscription reference")
		return nil
	}

	var snap *domain.SubscriptionSnapshot
	operation := func() error {
		var err error
		snap, err = r.billing.GetSubscription(ctx, event.SubscriptionID)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeDropped)
		r.log.Errorw("Failed to refetch subscription for invoice event",
			"error", err, "subscriptionID", event.SubscriptionID, "eventID", event.ID)
		return err
	}

	return r.applySnapshot(ctx, event, snap)
}

// applySnapshot применяет снимок состояния подписки провайдера к записи
// пользователя. Снимок перезаписывает запись целиком и обнуляет счетчик
// использования; повторное применение дает тот же результат.
func (r *reconciler) applySnapshot(ctx context.Context, event billing.Event, snap *domain.SubscriptionSnapshot) error {
	if snap == nil || snap.CustomerID == "" {
		r.dropEvent(event, "subscription event without customer reference")
		return nil
	}
	if snap.PlanID == "" || !snap.PlanID.IsKnown() {
		// Цена без метаданных плана — ошибка конфигурации на стороне
		// провайдера, видимая оператору, а не пользователю
		r.dropEvent(event, "subscription event without recognizable plan metadata")
		return nil
	}
	if !snap.PeriodEnd.After(snap.PeriodStart) {
		r.dropEvent(event, "subscription event with invalid billing period")
		return nil
	}

	rec, err := r.store.GetByCustomerID(ctx, snap.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.dropEvent(event, "no user for customer reference "+snap.CustomerID)
			return nil
		}
		return err
	}

	if err := r.store.ApplySnapshot(ctx, rec.UserID, *snap); err != nil {
		return err
	}

	r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeApplied)
	r.log.Infow("Applied subscription snapshot",
		"userID", rec.UserID, "plan", snap.PlanID, "status", snap.Status, "eventID", event.ID)

	// Публикация события — best effort: ошибка Kafka не должна
	// провалить обработку вебхука
	if err := r.producer.PublishSubscriptionEvent(ctx, events.SubscriptionEvent{
		UserID:      rec.UserID,
		PlanID:      snap.PlanID,
		Status:      snap.Status,
		PeriodStart: snap.PeriodStart,
		PeriodEnd:   snap.PeriodEnd,
		OccurredAt:  time.Now(),
	}); err != nil {
		r.log.Warnw("Failed to publish subscription event", "error", err, "userID", rec.UserID)
	}

	return nil
}

// dropEvent логирует событие, которое принято, но не может быть применено
func (r *reconciler) dropEvent(event billing.Event, reason string) {
	r.metrics.IncWebhookEvent(event.RawType, metrics.WebhookOutcomeDropped)
	r.log.Warnw("Dropping webhook event", "type", event.RawType, "eventID", event.ID, "reason", reason)
}
