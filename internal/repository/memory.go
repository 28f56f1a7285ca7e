package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

// InMemorySubscriptionStore реализация хранилища подписок в памяти.
// Повторяет семантику PostgreSQL-реализации, используется в тестах.
type InMemorySubscriptionStore struct {
	records map[string]*domain.SubscriptionRecord
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemorySubscriptionStore создает новое хранилище подписок в памяти
func NewInMemorySubscriptionStore(log *logger.Logger) *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		records: make(map[string]*domain.SubscriptionRecord),
		log:     log,
	}
}

// Get возвращает запись подписки пользователя
func (s *InMemorySubscriptionStore) Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rec, exists := s.records[userID]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *rec
	return &copied, nil
}

// GetByCustomerID находит запись по внешнему идентификатору клиента
func (s *InMemorySubscriptionStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if customerID == "" {
		return nil, ErrNotFound
	}

	for _, rec := range s.records {
		if rec.StripeCustomerID == customerID {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// EnsureRecord идемпотентно создает запись по умолчанию
func (s *InMemorySubscriptionStore) EnsureRecord(ctx context.Context, userID string) (*domain.SubscriptionRecord, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if rec, exists := s.records[userID]; exists {
		copied := *rec
		return &copied, false, nil
	}

	now := time.Now()
	rec := &domain.SubscriptionRecord{
		UserID:             userID,
		PlanID:             domain.PlanFree,
		Status:             domain.SubscriptionStatusNone,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		OffersCreated:      0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.records[userID] = rec

	copied := *rec
	return &copied, true, nil
}

// SetCustomerID привязывает идентификатор клиента; установленная ссылка не перезаписывается
func (s *InMemorySubscriptionStore) SetCustomerID(ctx context.Context, userID, customerID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return ErrNotFound
	}

	if rec.StripeCustomerID != "" && rec.StripeCustomerID != customerID {
		s.log.Warnw("Refused to overwrite existing customer reference",
			"userID", userID, "existing", rec.StripeCustomerID, "incoming", customerID)
		return nil
	}

	rec.StripeCustomerID = customerID
	rec.UpdatedAt = time.Now()
	return nil
}

// ApplySnapshot перезаписывает жизненные поля записи снимком провайдера
func (s *InMemorySubscriptionStore) ApplySnapshot(ctx context.Context, userID string, snap domain.SubscriptionSnapshot) error {
	if !snap.PeriodEnd.After(snap.PeriodStart) {
		return fmt.Errorf("%w: period end must be after period start", ErrInvalidData)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return ErrNotFound
	}

	rec.PlanID = snap.PlanID
	rec.Status = snap.Status
	rec.StripeCustomerID = snap.CustomerID
	rec.StripeSubscriptionID = snap.SubscriptionID
	rec.CurrentPeriodStart = snap.PeriodStart
	rec.CurrentPeriodEnd = snap.PeriodEnd
	rec.OffersCreated = 0
	rec.UpdatedAt = time.Now()
	return nil
}

// IncrementOfferCount атомарно увеличивает счетчик оффер-листов
func (s *InMemorySubscriptionStore) IncrementOfferCount(ctx context.Context, userID string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return 0, ErrNotFound
	}

	rec.OffersCreated++
	rec.UpdatedAt = time.Now()
	return rec.OffersCreated, nil
}

// ResetPeriodIfRolledOver сбрасывает счетчик и сдвигает окно периода
func (s *InMemorySubscriptionStore) ResetPeriodIfRolledOver(ctx context.Context, userID string, now time.Time) (*domain.SubscriptionRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, exists := s.records[userID]
	if !exists {
		return nil, ErrNotFound
	}

	if rec.CurrentPeriodEnd.Before(now) {
		rec.OffersCreated = 0
		rec.CurrentPeriodStart = now
		rec.CurrentPeriodEnd = now.AddDate(0, 1, 0)
		rec.UpdatedAt = now
	}

	copied := *rec
	return &copied, nil
}

// InMemoryEventLedger журнал обработанных событий в памяти
type InMemoryEventLedger struct {
	seen  map[string]time.Time
	mutex sync.Mutex
}

// NewInMemoryEventLedger создает новый журнал событий в памяти
func NewInMemoryEventLedger() *InMemoryEventLedger {
	return &InMemoryEventLedger{
		seen: make(map[string]time.Time),
	}
}

// MarkProcessed отмечает событие обработанным, возвращает false для дубликата
func (l *InMemoryEventLedger) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if _, exists := l.seen[eventID]; exists {
		return false, nil
	}
	l.seen[eventID] = time.Now()
	return true, nil
}
