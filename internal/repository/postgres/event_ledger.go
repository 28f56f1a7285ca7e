package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/offerflow/billing-service/internal/repository"
	"github.com/offerflow/billing-service/pkg/logger"
)

// eventLedger реализует repository.EventLedger для PostgreSQL
type eventLedger struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewEventLedger создает журнал обработанных вебхук-событий
func NewEventLedger(pool *pgxpool.Pool, log *logger.Logger) repository.EventLedger {
	return &eventLedger{
		pool: pool,
		log:  log,
	}
}

// MarkProcessed отмечает событие обработанным. Дубликат определяется по
// первичному ключу: ON CONFLICT DO NOTHING не затрагивает ни одной строки.
func (l *eventLedger) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	query := `
        INSERT INTO webhook_events (event_id, processed_at)
        VALUES ($1, $2)
        ON CONFLICT (event_id) DO NOTHING`

	tag, err := l.pool.Exec(ctx, query, eventID, time.Now())
	if err != nil {
		l.log.Errorw("Failed to record webhook event", "error", err, "eventID", eventID)
		return false, fmt.Errorf("repository: failed to record webhook event: %w", err)
	}

	first := tag.RowsAffected() > 0
	if !first {
		l.log.Debugw("Webhook event already processed", "eventID", eventID)
	}
	return first, nil
}
