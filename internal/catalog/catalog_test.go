package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/domain"
)

func testConfig() config.StripeConfig {
	return config.StripeConfig{
		PriceProMonthly:      "price_pro_m",
		PriceProYearly:       "price_pro_y",
		PriceBusinessMonthly: "price_biz_m",
		PriceBusinessYearly:  "price_biz_y",
	}
}

func TestEntitlements_UnknownPlanGetsFreeBundle(t *testing.T) {
	c := New(testConfig())

	bundle := c.Entitlements(domain.PlanID("enterprise"))
	assert.Equal(t, 5, bundle.MaxOffersPerPeriod)
	assert.False(t, bundle.CustomBranding)
	assert.Equal(t, domain.SupportTierCommunity, bundle.SupportTier)
}

func TestEntitlements_PlanLadder(t *testing.T) {
	c := New(testConfig())

	free := c.Entitlements(domain.PlanFree)
	pro := c.Entitlements(domain.PlanProMonthly)
	business := c.Entitlements(domain.PlanBusinessYearly)

	assert.False(t, free.AnalyticsAccess)
	assert.False(t, pro.AnalyticsAccess)
	assert.True(t, business.AnalyticsAccess)

	assert.Equal(t, domain.UnlimitedOffers, pro.MaxOffersPerPeriod)
	assert.True(t, pro.AllowsExport(domain.ExportFormatPNG))
	assert.False(t, pro.AllowsExport(domain.ExportFormatXLSX))
	assert.True(t, business.AllowsExport(domain.ExportFormatXLSX))
	assert.Equal(t, 10, business.MaxTeamMembers)
}

func TestEffective_FailsClosedOnInactiveStatus(t *testing.T) {
	c := New(testConfig())
	now := time.Now()

	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusPastDue,
		domain.SubscriptionStatusUnpaid,
		domain.SubscriptionStatusCanceled,
		domain.SubscriptionStatusIncomplete,
		domain.SubscriptionStatusNone,
	} {
		bundle := c.Effective(&domain.SubscriptionRecord{
			UserID:             "user-1",
			PlanID:             domain.PlanBusinessMonthly,
			Status:             status,
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		})
		assert.False(t, bundle.CustomBranding, "status %s must give the free bundle", status)
	}

	assert.False(t, c.Effective(nil).CustomBranding)
}

func TestEffective_ActiveAndTrialingEntitle(t *testing.T) {
	c := New(testConfig())

	for _, status := range []domain.SubscriptionStatus{
		domain.SubscriptionStatusActive,
		domain.SubscriptionStatusTrialing,
	} {
		bundle := c.Effective(&domain.SubscriptionRecord{
			PlanID: domain.PlanProMonthly,
			Status: status,
		})
		assert.True(t, bundle.CustomBranding, "status %s must grant plan entitlements", status)
	}
}

func TestPriceID(t *testing.T) {
	c := New(testConfig())

	price, err := c.PriceID(domain.PlanProMonthly)
	assert.NoError(t, err)
	assert.Equal(t, "price_pro_m", price)

	_, err = c.PriceID(domain.PlanFree)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Платный план без настроенной цены - ошибка конфигурации
	incomplete := New(config.StripeConfig{PriceProMonthly: "price_pro_m"})
	_, err = incomplete.PriceID(domain.PlanBusinessMonthly)
	assert.ErrorIs(t, err, domain.ErrMisconfigured)
}

func TestPlanByPrice(t *testing.T) {
	c := New(testConfig())

	plan, ok := c.PlanByPrice("price_biz_y")
	assert.True(t, ok)
	assert.Equal(t, domain.PlanBusinessYearly, plan)

	_, ok = c.PlanByPrice("price_unknown")
	assert.False(t, ok)

	// Пустая цена не должна матчить план без настроенной цены
	incomplete := New(config.StripeConfig{})
	_, ok = incomplete.PlanByPrice("")
	assert.False(t, ok)
}
