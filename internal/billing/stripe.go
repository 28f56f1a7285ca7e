package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

// stripeClient реализует интерфейс Client поверх Stripe SDK
type stripeClient struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	returnURL     string
	log           *logger.Logger
}

// NewStripeClient создает новый экземпляр клиента Stripe
func NewStripeClient(cfg config.StripeConfig, log *logger.Logger) Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &stripeClient{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.CheckoutSuccessURL,
		cancelURL:     cfg.CheckoutCancelURL,
		returnURL:     cfg.PortalReturnURL,
		log:           log,
	}
}

// CreateCustomer создает нового клиента в Stripe
func (c *stripeClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(uuid.NewString()),
			Metadata: map[string]string{
				metadataUserIDKey: userID,
			},
		},
	}

	cus, err := c.api.Customers.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCustomer", err)
		return "", &domain.ExternalServiceError{Service: "stripe", Message: "failed to create customer", OriginalErr: err}
	}

	c.log.Infow("Stripe customer created", "stripeCustomerID", cus.ID, "userID", userID)
	return cus.ID, nil
}

// CreateCheckoutSession создает hosted checkout-сессию для клиента и цены.
// Метаданные user_id/plan_id вернутся к нам в вебхук-событиях.
func (c *stripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	subData := &stripe.CheckoutSessionSubscriptionDataParams{
		Metadata: map[string]string{
			metadataUserIDKey: p.UserID,
			metadataPlanIDKey: string(p.PlanID),
		},
	}
	if p.TrialDays > 0 {
		subData.TrialPeriodDays = stripe.Int64(int64(p.TrialDays))
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		SuccessURL:        stripe.String(c.successURL),
		CancelURL:         stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: subData,
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: stripe.String(uuid.NewString()),
			Metadata: map[string]string{
				metadataUserIDKey: p.UserID,
				metadataPlanIDKey: string(p.PlanID),
			},
		},
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(c.log, "CreateCheckoutSession", err)
		return "", &domain.ExternalServiceError{Service: "stripe", Message: "failed to create checkout session", OriginalErr: err}
	}

	c.log.Infow("Stripe checkout session created",
		"sessionID", session.ID, "userID", p.UserID, "plan", p.PlanID, "trialDays", p.TrialDays)
	return session.URL, nil
}

// CreatePortalSession создает сессию billing-портала для клиента
func (c *stripeClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(c.returnURL),
		Params: stripe.Params{
			Context: ctx,
		},
	}

	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		logStripeError(c.log, "CreatePortalSession", err)
		return "", &domain.ExternalServiceError{Service: "stripe", Message: "failed to create portal session", OriginalErr: err}
	}

	c.log.Infow("Stripe billing portal session created", "stripeCustomerID", customerID)
	return session.URL, nil
}

// GetSubscription запрашивает подписку у Stripe и возвращает ее снимок
func (c *stripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*domain.SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		logStripeError(c.log, "GetSubscription", err)
		return nil, &domain.ExternalServiceError{Service: "stripe", Message: "failed to get subscription", OriginalErr: err}
	}

	return snapshotFromSubscription(sub), nil
}

// VerifyEvent проверяет HMAC-подпись вебхука и маппит событие Stripe
// в нейтральное представление
func (c *stripeClient) VerifyEvent(payload []byte, signature string) (Event, error) {
	ev, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return mapEvent(ev)
}

// logStripeError вспомогательная функция для логирования деталей ошибки Stripe
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
