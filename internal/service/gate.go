package service

import (
	"context"
	"errors"
	"time"

	"github.com/offerflow/billing-service/internal/catalog"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/metrics"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

// Predicate проверка над набором прав пользователя
type Predicate func(domain.EntitlementBundle) bool

// Gate единая точка проверки прав. Отвечает на вопрос "может ли
// пользователь X выполнить действие Y" и всегда закрывается в сторону
// бесплатного набора прав при любой неопределенности.
type Gate interface {
	// Resolve возвращает запись подписки и действующий набор прав.
	// Для пользователя без записи возвращается nil и бесплатный набор.
	Resolve(ctx context.Context, userID string) (*domain.SubscriptionRecord, domain.EntitlementBundle, error)

	// Check проверяет предикат над действующим набором прав пользователя
	Check(ctx context.Context, userID, name string, predicate Predicate) error

	// IncrementOfferCount атомарно увеличивает счетчик созданных офферов
	// и возвращает новое значение. Запись подписки не создается.
	IncrementOfferCount(ctx context.Context, userID string) (int, error)
}

// gate реализация Gate
type gate struct {
	store   repository.SubscriptionStore
	catalog *catalog.Catalog
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewGate создает новый Gate
func NewGate(store repository.SubscriptionStore, cat *catalog.Catalog, m metrics.BillingMetrics, log *logger.Logger) Gate {
	return &gate{
		store:   store,
		catalog: cat,
		metrics: m,
		log:     log,
	}
}

// Resolve возвращает запись подписки и действующий набор прав.
// Перед чтением счетчик использования при необходимости сбрасывается
// на границе расчетного периода.
func (g *gate) Resolve(ctx context.Context, userID string) (*domain.SubscriptionRecord, domain.EntitlementBundle, error) {
	if userID == "" {
		return nil, domain.EntitlementBundle{}, &domain.AuthenticationError{Reason: "missing user identity"}
	}

	rec, err := g.store.ResetPeriodIfRolledOver(ctx, userID, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Нет записи — действует бесплатный набор прав
			return nil, g.catalog.Effective(nil), nil
		}
		return nil, domain.EntitlementBundle{}, err
	}

	return rec, g.catalog.Effective(rec), nil
}

// Check проверяет предикат над действующим набором прав пользователя
func (g *gate) Check(ctx context.Context, userID, name string, predicate Predicate) error {
	rec, bundle, err := g.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	if !predicate(bundle) {
		plan := domain.PlanFree
		if rec != nil {
			plan = rec.PlanID
		}
		g.metrics.IncGateDenied(name)
		g.log.Infow("Entitlement check denied", "userID", userID, "check", name, "plan", plan)
		return &domain.AuthorizationError{Predicate: name}
	}
	return nil
}

// IncrementOfferCount атомарно увеличивает счетчик созданных офферов.
// Для пользователя без записи увеличение отклоняется: учет использования
// есть только у существующих записей.
func (g *gate) IncrementOfferCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, &domain.AuthenticationError{Reason: "missing user identity"}
	}

	count, err := g.store.IncrementOfferCount(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, &domain.NotFoundError{Entity: "subscription record", ID: userID}
		}
		return 0, err
	}

	g.metrics.IncUsageIncrement()
	return count, nil
}
