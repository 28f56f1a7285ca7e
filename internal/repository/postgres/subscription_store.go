package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

// subscriptionStore реализует repository.SubscriptionStore для PostgreSQL
type subscriptionStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewSubscriptionStore создает новый экземпляр хранилища подписок для PostgreSQL
func NewSubscriptionStore(pool *pgxpool.Pool, log *logger.Logger) repository.SubscriptionStore {
	return &subscriptionStore{
		pool: pool,
		log:  log,
	}
}

const recordColumns = `
    user_id, plan_id, status, stripe_customer_id, stripe_subscription_id,
    current_period_start, current_period_end, offers_created, created_at, updated_at`

// scanRecord читает запись подписки из строки результата
func scanRecord(row pgx.Row) (*domain.SubscriptionRecord, error) {
	var rec domain.SubscriptionRecord
	err := row.Scan(
		&rec.UserID, &rec.PlanID, &rec.Status, &rec.StripeCustomerID, &rec.StripeSubscriptionID,
		&rec.CurrentPeriodStart, &rec.CurrentPeriodEnd, &rec.OffersCreated, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Get возвращает запись подписки пользователя
func (s *subscriptionStore) Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	query := `SELECT` + recordColumns + ` FROM subscriptions WHERE user_id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.log.Errorw("Failed to get subscription record", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to get subscription record: %w", err)
	}
	return rec, nil
}

// GetByCustomerID находит запись по внешнему идентификатору клиента Stripe
func (s *subscriptionStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	query := `SELECT` + recordColumns + ` FROM subscriptions WHERE stripe_customer_id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		s.log.Errorw("Failed to get subscription record by customer", "error", err, "customerID", customerID)
		return nil, fmt.Errorf("repository: failed to get subscription record by customer: %w", err)
	}
	return rec, nil
}

// EnsureRecord идемпотентно создает запись по умолчанию для пользователя.
// Повторный вызов для существующей записи ничего не меняет.
func (s *subscriptionStore) EnsureRecord(ctx context.Context, userID string) (*domain.SubscriptionRecord, bool, error) {
	now := time.Now()
	insert := `
        INSERT INTO subscriptions (
            user_id, plan_id, status, stripe_customer_id, stripe_subscription_id,
            current_period_start, current_period_end, offers_created, created_at, updated_at
        ) VALUES ($1, $2, $3, '', '', $4, $5, 0, $4, $4)
        ON CONFLICT (user_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, insert,
		userID, domain.PlanFree, domain.SubscriptionStatusNone, now, now.AddDate(0, 1, 0))
	if err != nil {
		s.log.Errorw("Failed to ensure subscription record", "error", err, "userID", userID)
		return nil, false, fmt.Errorf("repository: failed to ensure subscription record: %w", err)
	}
	created := tag.RowsAffected() > 0

	rec, err := s.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	if created {
		s.log.Debugw("Created default subscription record", "userID", userID)
	}
	return rec, created, nil
}

// SetCustomerID привязывает идентификатор клиента Stripe к записи.
// Условие WHERE гарантирует, что уже установленная ссылка не перезаписывается.
func (s *subscriptionStore) SetCustomerID(ctx context.Context, userID, customerID string) error {
	query := `
        UPDATE subscriptions SET stripe_customer_id = $2, updated_at = $3
        WHERE user_id = $1 AND (stripe_customer_id = '' OR stripe_customer_id = $2)`

	tag, err := s.pool.Exec(ctx, query, userID, customerID, time.Now())
	if err != nil {
		s.log.Errorw("Failed to set customer ID", "error", err, "userID", userID, "customerID", customerID)
		return fmt.Errorf("repository: failed to set customer ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо записи нет, либо у нее уже другая ссылка на клиента
		existing, err := s.Get(ctx, userID)
		if err != nil {
			return err
		}
		s.log.Warnw("Refused to overwrite existing customer reference",
			"userID", userID, "existing", existing.StripeCustomerID, "incoming", customerID)
	}
	return nil
}

// ApplySnapshot перезаписывает жизненные поля записи снимком провайдера
// и обнуляет счетчик использования. Повторное применение того же снимка
// дает идентичную запись.
func (s *subscriptionStore) ApplySnapshot(ctx context.Context, userID string, snap domain.SubscriptionSnapshot) error {
	if !snap.PeriodEnd.After(snap.PeriodStart) {
		return fmt.Errorf("repository: %w: period end must be after period start", repository.ErrInvalidData)
	}

	query := `
        UPDATE subscriptions SET
            plan_id = $2,
            status = $3,
            stripe_customer_id = $4,
            stripe_subscription_id = $5,
            current_period_start = $6,
            current_period_end = $7,
            offers_created = 0,
            updated_at = $8
        WHERE user_id = $1`

	tag, err := s.pool.Exec(ctx, query,
		userID, snap.PlanID, snap.Status, snap.CustomerID, snap.SubscriptionID,
		snap.PeriodStart, snap.PeriodEnd, time.Now())
	if err != nil {
		s.log.Errorw("Failed to apply subscription snapshot", "error", err, "userID", userID)
		return fmt.Errorf("repository: failed to apply subscription snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	s.log.Debugw("Applied subscription snapshot",
		"userID", userID, "plan", snap.PlanID, "status", snap.Status)
	return nil
}

// IncrementOfferCount атомарно увеличивает счетчик оффер-листов.
// Инкремент выполняется на стороне базы, конкурентные вызовы не теряются.
func (s *subscriptionStore) IncrementOfferCount(ctx context.Context, userID string) (int, error) {
	query := `
        UPDATE subscriptions SET offers_created = offers_created + 1, updated_at = $2
        WHERE user_id = $1
        RETURNING offers_created`

	var count int
	err := s.pool.QueryRow(ctx, query, userID, time.Now()).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		s.log.Errorw("Failed to increment offer count", "error", err, "userID", userID)
		return 0, fmt.Errorf("repository: failed to increment offer count: %w", err)
	}
	return count, nil
}

// ResetPeriodIfRolledOver сбрасывает счетчик и сдвигает окно периода, если
// текущий период закончился. Условный UPDATE делает сброс идемпотентным
// при конкурентных чтениях.
func (s *subscriptionStore) ResetPeriodIfRolledOver(ctx context.Context, userID string, now time.Time) (*domain.SubscriptionRecord, error) {
	query := `
        UPDATE subscriptions SET
            offers_created = 0,
            current_period_start = $2,
            current_period_end = $3,
            updated_at = $2
        WHERE user_id = $1 AND current_period_end < $2`

	if _, err := s.pool.Exec(ctx, query, userID, now, now.AddDate(0, 1, 0)); err != nil {
		s.log.Errorw("Failed to reset billing period", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to reset billing period: %w", err)
	}

	return s.Get(ctx, userID)
}
