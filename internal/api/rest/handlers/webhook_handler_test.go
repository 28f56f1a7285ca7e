package handlers

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/billing"
	"github.com/offerflow/billing-service/internal/catalog"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/events"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/internal/service"
	"github.com/offerflow/billing-service/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

type webhookFixture struct {
	router *gin.Engine
	store  *repository.InMemorySubscriptionStore
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.DEBUG)
	store := repository.NewInMemorySubscriptionStore(log)
	ledger := repository.NewInMemoryEventLedger()
	m := metrics.NewBillingMetrics(prometheus.NewRegistry(), log)

	stripeCfg := config.StripeConfig{
		SecretKey:       "sk_test_key",
		WebhookSecret:   testWebhookSecret,
		PriceProMonthly: "price_pro_m",
	}
	stripeClient := billing.NewStripeClient(stripeCfg, log)
	reconciler := service.NewReconciler(store, ledger, stripeClient, catalog.New(stripeCfg), events.NopProducer{}, m, 30, log)

	router := gin.New()
	handler := NewWebhookHandler(stripeClient, reconciler, log)
	router.POST("/webhooks/stripe", handler.HandleStripeWebhook)

	return &webhookFixture{router: router, store: store}
}

// signPayload подписывает тело запроса так же, как это делает Stripe
func signPayload(payload []byte, secret string, ts time.Time) string {
	signature := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(signature))
}

func subscriptionEventPayload(eventID string) []byte {
	now := time.Now()
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"api_version": %q,
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"customer": "cus_1",
			"status": "active",
			"current_period_start": %d,
			"current_period_end": %d,
			"items": {"data": [{"price": {"id": "price_pro_m", "metadata": {"plan_id": "pro-monthly"}}}]}
		}}
	}`, eventID, stripe.APIVersion, now.Unix(), now.AddDate(0, 1, 0).Unix()))
}

func (f *webhookFixture) post(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandleStripeWebhook_InvalidSignatureRejected(t *testing.T) {
	f := newWebhookFixture(t)
	payload := subscriptionEventPayload("evt_1")

	w := f.post(payload, signPayload(payload, "whsec_wrong_secret", time.Now()))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Запись не должна появиться или измениться
	_, err := f.store.Get(context.Background(), "user-1")
	assert.Error(t, err)
}

func TestHandleStripeWebhook_MissingSignatureRejected(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(subscriptionEventPayload("evt_1"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStripeWebhook_ValidEventApplied(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	_, _, err := f.store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_1"))

	payload := subscriptionEventPayload("evt_1")
	w := f.post(payload, signPayload(payload, testWebhookSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanProMonthly, rec.PlanID)
	assert.Equal(t, domain.SubscriptionStatusActive, rec.Status)
}

func TestHandleStripeWebhook_UnknownCustomerStillReturns200(t *testing.T) {
	f := newWebhookFixture(t)

	payload := subscriptionEventPayload("evt_1")
	w := f.post(payload, signPayload(payload, testWebhookSecret, time.Now()))

	// После валидной подписи провайдер всегда получает 200
	assert.Equal(t, http.StatusOK, w.Code)
}
