package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/offerflow/billing-service/pkg/logger"
)

// Исходы обработки вебхук-событий
const (
	WebhookOutcomeApplied   = "applied"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeDropped   = "dropped"
	WebhookOutcomeDuplicate = "duplicate"
)

// BillingMetrics интерфейс для метрик биллинга
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncCheckoutSession(plan string)
	IncGateDenied(check string)
	IncUsageIncrement()
}

type billingMetrics struct {
	log              *logger.Logger
	webhookEvents    *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
	gateDenials      *prometheus.CounterVec
	usageIncrements  prometheus.Counter
}

// NewBillingMetrics создает новые метрики биллинга
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "The total number of processed webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	checkoutSessions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_checkout_sessions_total",
			Help: "The total number of initiated checkout sessions by plan",
		},
		[]string{"plan"},
	)

	gateDenials := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_gate_denials_total",
			Help: "The total number of denied entitlement checks",
		},
		[]string{"check"},
	)

	usageIncrements := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_usage_increments_total",
			Help: "The total number of offer usage increments",
		},
	)

	return &billingMetrics{
		log:              log,
		webhookEvents:    webhookEvents,
		checkoutSessions: checkoutSessions,
		gateDenials:      gateDenials,
		usageIncrements:  usageIncrements,
	}
}

// IncWebhookEvent увеличивает счетчик вебхук-событий
func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncCheckoutSession увеличивает счетчик checkout-сессий
func (m *billingMetrics) IncCheckoutSession(plan string) {
	m.checkoutSessions.WithLabelValues(plan).Inc()
}

// IncGateDenied увеличивает счетчик отказов проверки прав
func (m *billingMetrics) IncGateDenied(check string) {
	m.gateDenials.WithLabelValues(check).Inc()
}

// IncUsageIncrement увеличивает счетчик учета использования
func (m *billingMetrics) IncUsageIncrement() {
	m.usageIncrements.Inc()
}
