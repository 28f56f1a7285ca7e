// Package events публикует события жизненного цикла подписок для
// остальных сервисов OfferFlow (аналитика, почтовые уведомления).
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

// SubscriptionEvent сообщение об изменении подписки пользователя
type SubscriptionEvent struct {
	UserID      string                    `json:"user_id"`
	PlanID      domain.PlanID             `json:"plan_id"`
	Status      domain.SubscriptionStatus `json:"status"`
	PeriodStart time.Time                 `json:"period_start"`
	PeriodEnd   time.Time                 `json:"period_end"`
	OccurredAt  time.Time                 `json:"occurred_at"`
}

// Producer определяет интерфейс для публикации событий подписок
type Producer interface {
	// PublishSubscriptionEvent отправляет событие изменения подписки.
	// Ключ сообщения — UserID, чтобы события одного пользователя
	// попадали в одну партицию.
	PublishSubscriptionEvent(ctx context.Context, event SubscriptionEvent) error

	// Close закрывает соединение продюсера
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka
func NewKafkaProducer(brokers []string, topic string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers, "topic", topic)

	return &kafkaProducer{
		writer: writer,
		log:    log,
	}, nil
}

// PublishSubscriptionEvent отправляет событие изменения подписки в Kafka
func (p *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, event SubscriptionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal subscription event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Errorw("Failed to publish subscription event",
			"error", err, "userID", event.UserID, "status", event.Status)
		return fmt.Errorf("kafka: failed to publish subscription event: %w", err)
	}

	p.log.Debugw("Published subscription event",
		"userID", event.UserID, "plan", event.PlanID, "status", event.Status)
	return nil
}

// Close закрывает соединение продюсера Kafka
func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

// NopProducer продюсер-заглушка для окружений без Kafka и для тестов
type NopProducer struct{}

// PublishSubscriptionEvent ничего не делает
func (NopProducer) PublishSubscriptionEvent(ctx context.Context, event SubscriptionEvent) error {
	return nil
}

// Close ничего не делает
func (NopProducer) Close() error { return nil }
