package repository

import (
	"context"
	"time"

	"github.com/offerflow/billing-service/internal/domain"
)

// SubscriptionStore единый модуль доступа к записям подписок. Используется
// и пользовательскими запросами, и обработчиком вебхуков — двух схем
// записи быть не должно.
type SubscriptionStore interface {
	// Get возвращает запись подписки пользователя или ErrNotFound
	Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)

	// GetByCustomerID находит запись по внешнему идентификатору клиента.
	// Возвращает ErrNotFound, если ссылка не привязана ни к одному пользователю.
	GetByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error)

	// EnsureRecord идемпотентно создает запись по умолчанию (план free,
	// статус none). Сообщает, была ли запись создана этим вызовом.
	EnsureRecord(ctx context.Context, userID string) (record *domain.SubscriptionRecord, created bool, err error)

	// SetCustomerID привязывает внешний идентификатор клиента к записи.
	// Однажды установленная ссылка никогда не перезаписывается.
	SetCustomerID(ctx context.Context, userID, customerID string) error

	// ApplySnapshot перезаписывает жизненные поля записи снимком состояния
	// провайдера и обнуляет счетчик использования. Идемпотентна.
	ApplySnapshot(ctx context.Context, userID string, snap domain.SubscriptionSnapshot) error

	// IncrementOfferCount атомарно увеличивает счетчик оффер-листов.
	// Не создает запись: при ее отсутствии возвращает ErrNotFound.
	IncrementOfferCount(ctx context.Context, userID string) (int, error)

	// ResetPeriodIfRolledOver сбрасывает счетчик и сдвигает окно периода,
	// если текущий период закончился. Возвращает актуальную запись.
	ResetPeriodIfRolledOver(ctx context.Context, userID string, now time.Time) (*domain.SubscriptionRecord, error)
}

// EventLedger журнал обработанных событий биллинг-провайдера.
// Превращает at-least-once доставку в exactly-once применение.
type EventLedger interface {
	// MarkProcessed отмечает событие обработанным. Возвращает false,
	// если событие уже встречалось раньше.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}
