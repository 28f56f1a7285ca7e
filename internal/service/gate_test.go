package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

type gateFixture struct {
	gate  Gate
	store *repository.InMemorySubscriptionStore
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	log := logger.New(logger.DEBUG)
	store := repository.NewInMemorySubscriptionStore(log)
	m := metrics.NewBillingMetrics(prometheus.NewRegistry(), log)

	return &gateFixture{
		gate:  NewGate(store, testCatalog(), m, log),
		store: store,
	}
}

// seedActive создает запись пользователя с активной подпиской на плане
func (f *gateFixture) seedActive(t *testing.T, userID string, plan domain.PlanID, status domain.SubscriptionStatus) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.store.EnsureRecord(ctx, userID)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, f.store.ApplySnapshot(ctx, userID, domain.SubscriptionSnapshot{
		SubscriptionID: "sub_" + userID,
		CustomerID:     "cus_" + userID,
		PlanID:         plan,
		Status:         status,
		PeriodStart:    now,
		PeriodEnd:      now.AddDate(0, 1, 0),
	}))
}

func TestResolve_UnknownUserGetsFreeBundle(t *testing.T) {
	f := newGateFixture(t)

	rec, bundle, err := f.gate.Resolve(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, bundle.CustomBranding)
	assert.Equal(t, 5, bundle.MaxOffersPerPeriod)
}

func TestCheck_FreeUserDeniedBranding(t *testing.T) {
	f := newGateFixture(t)

	err := f.gate.Check(context.Background(), "user-1", "custom_branding", func(b domain.EntitlementBundle) bool {
		return b.CustomBranding
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCheck_ActiveProAllowedBranding(t *testing.T) {
	f := newGateFixture(t)
	f.seedActive(t, "user-1", domain.PlanProMonthly, domain.SubscriptionStatusActive)

	err := f.gate.Check(context.Background(), "user-1", "custom_branding", func(b domain.EntitlementBundle) bool {
		return b.CustomBranding
	})
	assert.NoError(t, err)
}

func TestCheck_PastDueFallsBackToFreeBundle(t *testing.T) {
	f := newGateFixture(t)
	f.seedActive(t, "user-1", domain.PlanBusinessMonthly, domain.SubscriptionStatusPastDue)

	err := f.gate.Check(context.Background(), "user-1", "analytics_access", func(b domain.EntitlementBundle) bool {
		return b.AnalyticsAccess
	})
	assert.ErrorIs(t, err, domain.ErrForbidden, "paid plan with past_due status must not grant paid entitlements")
}

func TestCheck_TrialingGrantsPaidEntitlements(t *testing.T) {
	f := newGateFixture(t)
	f.seedActive(t, "user-1", domain.PlanProYearly, domain.SubscriptionStatusTrialing)

	err := f.gate.Check(context.Background(), "user-1", "remove_watermark", func(b domain.EntitlementBundle) bool {
		return b.RemoveWatermark
	})
	assert.NoError(t, err)
}

func TestIncrementOfferCount_NoRecordFails(t *testing.T) {
	f := newGateFixture(t)

	_, err := f.gate.IncrementOfferCount(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIncrementOfferCount_CountsUp(t *testing.T) {
	f := newGateFixture(t)
	f.seedActive(t, "user-1", domain.PlanProMonthly, domain.SubscriptionStatusActive)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		count, err := f.gate.IncrementOfferCount(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}

func TestResolve_RolloverResetsUsageCounter(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	_, _, err := f.store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)

	// Период подписки закончился в прошлом
	past := time.Now().AddDate(0, -2, 0)
	require.NoError(t, f.store.ApplySnapshot(ctx, "user-1", domain.SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		PlanID:         domain.PlanFree,
		Status:         domain.SubscriptionStatusNone,
		PeriodStart:    past,
		PeriodEnd:      past.AddDate(0, 1, 0),
	}))
	for i := 0; i < 4; i++ {
		_, err := f.store.IncrementOfferCount(ctx, "user-1")
		require.NoError(t, err)
	}

	rec, _, err := f.gate.Resolve(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.OffersCreated, "usage counter must reset on period rollover")
	assert.True(t, rec.CurrentPeriodEnd.After(time.Now()))
}
