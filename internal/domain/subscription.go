package domain

import (
	"time"
)

// SubscriptionRecord персистентное состояние подписки пользователя.
// Одна запись на пользователя, жизненные поля перезаписывает только Reconciler.
type SubscriptionRecord struct {
	UserID               string             `json:"user_id"`
	PlanID               PlanID             `json:"plan_id"`
	Status               SubscriptionStatus `json:"status"`
	StripeCustomerID     string             `json:"stripe_customer_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	OffersCreated        int                `json:"offers_created"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// PeriodRolledOver проверяет, закончился ли текущий биллинг-период
func (r *SubscriptionRecord) PeriodRolledOver(now time.Time) bool {
	return !r.CurrentPeriodEnd.IsZero() && now.After(r.CurrentPeriodEnd)
}

// SubscriptionSnapshot полный снимок состояния подписки на стороне провайдера.
// Провайдер является источником истины для этих полей, снимок применяется
// к записи целиком (last-write-wins).
type SubscriptionSnapshot struct {
	SubscriptionID string
	CustomerID     string
	PlanID         PlanID
	Status         SubscriptionStatus
	PeriodStart    time.Time
	PeriodEnd      time.Time
}
