package domain

// PlanID идентификатор тарифного плана
type PlanID string

const (
	// PlanFree бесплатный план, он же состояние "без подписки"
	PlanFree PlanID = "free"

	PlanProMonthly      PlanID = "pro-monthly"
	PlanProYearly       PlanID = "pro-yearly"
	PlanBusinessMonthly PlanID = "business-monthly"
	PlanBusinessYearly  PlanID = "business-yearly"
)

// PaidPlans список платных планов в порядке возрастания цены
var PaidPlans = []PlanID{
	PlanProMonthly,
	PlanProYearly,
	PlanBusinessMonthly,
	PlanBusinessYearly,
}

// IsPaid проверяет, является ли план платным
func (p PlanID) IsPaid() bool {
	for _, paid := range PaidPlans {
		if p == paid {
			return true
		}
	}
	return false
}

// IsKnown проверяет, входит ли план в закрытый перечень планов
func (p PlanID) IsKnown() bool {
	return p == PlanFree || p.IsPaid()
}

// SubscriptionStatus статус подписки, как его сообщает биллинг-провайдер
type SubscriptionStatus string

const (
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"

	// SubscriptionStatusNone запись существует, но подписки у пользователя нет
	SubscriptionStatusNone SubscriptionStatus = "none"
)

// IsEntitling проверяет, дает ли статус право на тарифные возможности плана.
// Любой другой статус означает откат к бесплатному набору (fail-closed).
func (s SubscriptionStatus) IsEntitling() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}
