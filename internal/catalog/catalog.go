// Package catalog содержит статический справочник планов и их возможностей.
// Справочник определяется на этапе деплоя и не изменяется во время работы.
package catalog

import (
	"github.com/offerflow/billing-service/config"
	"github.com/offerflow/billing-service/internal/domain"
)

// Наборы возможностей по планам. Бесплатный набор одновременно является
// fail-closed значением для неизвестных планов и неактивных подписок.
var (
	bundleFree = domain.EntitlementBundle{
		MaxOffersPerPeriod: 5,
		CustomBranding:     false,
		RemoveWatermark:    false,
		SaveTemplates:      false,
		SaveCustomers:      false,
		DashboardAccess:    true,
		AnalyticsAccess:    false,
		ExportFormats:      []domain.ExportFormat{domain.ExportFormatPDF},
		MaxTeamMembers:     1,
		SupportTier:        domain.SupportTierCommunity,
	}

	bundlePro = domain.EntitlementBundle{
		MaxOffersPerPeriod: domain.UnlimitedOffers,
		CustomBranding:     true,
		RemoveWatermark:    true,
		SaveTemplates:      true,
		SaveCustomers:      true,
		DashboardAccess:    true,
		AnalyticsAccess:    false,
		ExportFormats:      []domain.ExportFormat{domain.ExportFormatPDF, domain.ExportFormatPNG},
		MaxTeamMembers:     1,
		SupportTier:        domain.SupportTierEmail,
	}

	bundleBusiness = domain.EntitlementBundle{
		MaxOffersPerPeriod: domain.UnlimitedOffers,
		CustomBranding:     true,
		RemoveWatermark:    true,
		SaveTemplates:      true,
		SaveCustomers:      true,
		DashboardAccess:    true,
		AnalyticsAccess:    true,
		ExportFormats:      []domain.ExportFormat{domain.ExportFormatPDF, domain.ExportFormatPNG, domain.ExportFormatXLSX},
		MaxTeamMembers:     10,
		SupportTier:        domain.SupportTierPriority,
	}

	bundles = map[domain.PlanID]domain.EntitlementBundle{
		domain.PlanFree:            bundleFree,
		domain.PlanProMonthly:      bundlePro,
		domain.PlanProYearly:       bundlePro,
		domain.PlanBusinessMonthly: bundleBusiness,
		domain.PlanBusinessYearly:  bundleBusiness,
	}
)

// Catalog справочник планов с привязкой к ценам биллинг-провайдера
type Catalog struct {
	prices map[domain.PlanID]string
}

// New создает справочник планов. Цены Stripe берутся из конфигурации,
// отсутствие цены платного плана обнаружится при первом обращении к нему.
func New(cfg config.StripeConfig) *Catalog {
	return &Catalog{
		prices: map[domain.PlanID]string{
			domain.PlanProMonthly:      cfg.PriceProMonthly,
			domain.PlanProYearly:       cfg.PriceProYearly,
			domain.PlanBusinessMonthly: cfg.PriceBusinessMonthly,
			domain.PlanBusinessYearly:  cfg.PriceBusinessYearly,
		},
	}
}

// Entitlements возвращает набор возможностей для плана.
// Тотальная функция: неизвестный план дает бесплатный набор, никогда не паникует.
func (c *Catalog) Entitlements(planID domain.PlanID) domain.EntitlementBundle {
	if bundle, ok := bundles[planID]; ok {
		return bundle
	}
	return bundleFree
}

// Effective вычисляет действующий набор возможностей для записи подписки.
// Статус вне {active, trialing} означает бесплатный набор независимо от плана.
func (c *Catalog) Effective(record *domain.SubscriptionRecord) domain.EntitlementBundle {
	if record == nil || !record.Status.IsEntitling() {
		return bundleFree
	}
	return c.Entitlements(record.PlanID)
}

// PriceID возвращает идентификатор цены Stripe для платного плана
func (c *Catalog) PriceID(planID domain.PlanID) (string, error) {
	if !planID.IsPaid() {
		return "", &domain.ValidationError{Field: "plan_id", Message: "plan is not purchasable: " + string(planID)}
	}
	price := c.prices[planID]
	if price == "" {
		return "", &domain.ConfigurationError{Detail: "no Stripe price configured for plan " + string(planID)}
	}
	return price, nil
}

// PlanByPrice находит план по идентификатору цены Stripe.
// Возвращает false, если цена не привязана ни к одному плану.
func (c *Catalog) PlanByPrice(priceID string) (domain.PlanID, bool) {
	for plan, price := range c.prices {
		if price != "" && price == priceID {
			return plan, true
		}
	}
	return "", false
}
