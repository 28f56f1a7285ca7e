package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/billing"
	"github.com/offerflow/billing-service/internal/catalog"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/events"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

// mockBillingClient управляемая реализация billing.Client для тестов
type mockBillingClient struct {
	customersCreated int
	lastCheckout     billing.CheckoutParams
	subscription     *domain.SubscriptionSnapshot
	subscriptionErr  error
}

func (m *mockBillingClient) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	m.customersCreated++
	return "cus_" + userID, nil
}

func (m *mockBillingClient) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (string, error) {
	m.lastCheckout = p
	return "https://checkout.test/session", nil
}

func (m *mockBillingClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	return "https://portal.test/" + customerID, nil
}

func (m *mockBillingClient) GetSubscription(ctx context.Context, subscriptionID string) (*domain.SubscriptionSnapshot, error) {
	return m.subscription, m.subscriptionErr
}

func (m *mockBillingClient) VerifyEvent(payload []byte, signature string) (billing.Event, error) {
	return billing.Event{}, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New(config.StripeConfig{
		PriceProMonthly:      "price_pro_m",
		PriceProYearly:       "price_pro_y",
		PriceBusinessMonthly: "price_biz_m",
		PriceBusinessYearly:  "price_biz_y",
	})
}

type reconcilerFixture struct {
	reconciler Reconciler
	store      *repository.InMemorySubscriptionStore
	billing    *mockBillingClient
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	log := logger.New(logger.DEBUG)
	store := repository.NewInMemorySubscriptionStore(log)
	ledger := repository.NewInMemoryEventLedger()
	billingClient := &mockBillingClient{}
	m := metrics.NewBillingMetrics(prometheus.NewRegistry(), log)

	return &reconcilerFixture{
		reconciler: NewReconciler(store, ledger, billingClient, testCatalog(), events.NopProducer{}, m, 30, log),
		store:      store,
		billing:    billingClient,
	}
}

func activeSnapshot(customerID string) *domain.SubscriptionSnapshot {
	now := time.Now()
	return &domain.SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		CustomerID:     customerID,
		PlanID:         domain.PlanProMonthly,
		Status:         domain.SubscriptionStatusActive,
		PeriodStart:    now,
		PeriodEnd:      now.AddDate(0, 1, 0),
	}
}

func TestInitiateCheckout_NewUserGetsTrial(t *testing.T) {
	f := newReconcilerFixture(t)

	url, err := f.reconciler.InitiateCheckout(context.Background(), "user-1", "u@example.com", domain.PlanProMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/session", url)
	assert.Equal(t, 30, f.billing.lastCheckout.TrialDays)
	assert.Equal(t, "price_pro_m", f.billing.lastCheckout.PriceID)
}

func TestInitiateCheckout_ExistingUserGetsNoTrial(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.reconciler.EnsureRecord(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = f.reconciler.InitiateCheckout(context.Background(), "user-1", "u@example.com", domain.PlanProMonthly)
	require.NoError(t, err)
	assert.Equal(t, 0, f.billing.lastCheckout.TrialDays)
}

func TestInitiateCheckout_RejectsNonPurchasablePlan(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.reconciler.InitiateCheckout(context.Background(), "user-1", "u@example.com", domain.PlanFree)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.reconciler.InitiateCheckout(context.Background(), "user-1", "u@example.com", domain.PlanID("enterprise"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInitiateCheckout_ReusesCustomerReference(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.InitiateCheckout(ctx, "user-1", "u@example.com", domain.PlanProMonthly)
	require.NoError(t, err)
	_, err = f.reconciler.InitiateCheckout(ctx, "user-1", "u@example.com", domain.PlanBusinessYearly)
	require.NoError(t, err)

	assert.Equal(t, 1, f.billing.customersCreated)
	assert.Equal(t, "cus_user-1", f.billing.lastCheckout.CustomerID)
}

func TestInitiatePortal_RequiresCustomerReference(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.InitiatePortal(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.reconciler.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	_, err = f.reconciler.InitiatePortal(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_user-1"))
	url, err := f.reconciler.InitiatePortal(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/cus_user-1", url)
}

func TestProcessEvent_AppliesSubscriptionSnapshot(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_1"))

	snap := activeSnapshot("cus_1")
	err = f.reconciler.ProcessEvent(ctx, billing.Event{
		ID:           "evt_1",
		Type:         billing.EventSubscriptionChanged,
		RawType:      "customer.subscription.created",
		Subscription: snap,
	})
	require.NoError(t, err)

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanProMonthly, rec.PlanID)
	assert.Equal(t, domain.SubscriptionStatusActive, rec.Status)
	assert.Equal(t, "sub_1", rec.StripeSubscriptionID)
	assert.Equal(t, 0, rec.OffersCreated)
}

func TestProcessEvent_DuplicateEventIsSkipped(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_1"))

	event := billing.Event{
		ID:           "evt_1",
		Type:         billing.EventSubscriptionChanged,
		RawType:      "customer.subscription.created",
		Subscription: activeSnapshot("cus_1"),
	}
	require.NoError(t, f.reconciler.ProcessEvent(ctx, event))

	// Пользователь успел израсходовать часть квоты
	_, err = f.store.IncrementOfferCount(ctx, "user-1")
	require.NoError(t, err)

	// Повторная доставка того же события не должна трогать запись
	require.NoError(t, f.reconciler.ProcessEvent(ctx, event))

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.OffersCreated, "duplicate event must not reset the usage counter")
}

func TestProcessEvent_UnknownCustomerIsDropped(t *testing.T) {
	f := newReconcilerFixture(t)

	err := f.reconciler.ProcessEvent(context.Background(), billing.Event{
		ID:           "evt_1",
		Type:         billing.EventSubscriptionChanged,
		RawType:      "customer.subscription.updated",
		Subscription: activeSnapshot("cus_unknown"),
	})
	assert.NoError(t, err, "events for unknown customers are logged and dropped, not failed")
}

func TestProcessEvent_MissingPlanMetadataIsDropped(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_1"))

	snap := activeSnapshot("cus_1")
	snap.PlanID = ""
	require.NoError(t, f.reconciler.ProcessEvent(ctx, billing.Event{
		ID:           "evt_1",
		Type:         billing.EventSubscriptionChanged,
		RawType:      "customer.subscription.updated",
		Subscription: snap,
	}))

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanFree, rec.PlanID, "record must stay untouched")
}

func TestProcessEvent_CheckoutLinksCustomer(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.reconciler.ProcessEvent(ctx, billing.Event{
		ID:      "evt_1",
		Type:    billing.EventCheckoutCompleted,
		RawType: "checkout.session.completed",
		Checkout: &billing.CheckoutCompleted{
			CustomerID: "cus_1",
			UserID:     "user-1",
			PlanID:     domain.PlanProMonthly,
		},
	}))

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", rec.StripeCustomerID)
	// План и статус придут событиями подписки, checkout их не трогает
	assert.Equal(t, domain.PlanFree, rec.PlanID)
}

func TestProcessEvent_InvoiceRefetchesSubscription(t *testing.T) {
	f := newReconcilerFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, f.store.SetCustomerID(ctx, "user-1", "cus_1"))

	now := time.Now()
	f.billing.subscription = &domain.SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		PlanID:         domain.PlanBusinessMonthly,
		Status:         domain.SubscriptionStatusPastDue,
		PeriodStart:    now,
		PeriodEnd:      now.AddDate(0, 1, 0),
	}

	require.NoError(t, f.reconciler.ProcessEvent(ctx, billing.Event{
		ID:             "evt_1",
		Type:           billing.EventInvoicePayment,
		RawType:        "invoice.payment_failed",
		SubscriptionID: "sub_1",
	}))

	rec, err := f.store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, rec.Status)
	assert.Equal(t, domain.PlanBusinessMonthly, rec.PlanID)
}

func TestProcessEvent_InvoiceRefetchFailureReturnsError(t *testing.T) {
	f := newReconcilerFixture(t)
	f.billing.subscriptionErr = errors.New("stripe is down")

	err := f.reconciler.ProcessEvent(context.Background(), billing.Event{
		ID:             "evt_1",
		Type:           billing.EventInvoicePayment,
		RawType:        "invoice.payment_succeeded",
		SubscriptionID: "sub_1",
	})
	assert.Error(t, err)
}

func TestProcessEvent_IgnoredEventIsNoop(t *testing.T) {
	f := newReconcilerFixture(t)

	assert.NoError(t, f.reconciler.ProcessEvent(context.Background(), billing.Event{
		ID:      "evt_1",
		Type:    billing.EventIgnored,
		RawType: "payment_intent.created",
	}))
}
