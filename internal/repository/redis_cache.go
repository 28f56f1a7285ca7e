package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	subscriptionKeyPrefix = "subscription:"

	// TTL для кэша
	defaultCacheTTL = 5 * time.Minute
)

// RedisCache кеширует записи подписок в Redis
type RedisCache struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCache создает новый Redis-кеш и проверяет соединение
func NewRedisCache(addr, password string, db int, log *logger.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return &RedisCache{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// get читает запись подписки из кеша; nil без ошибки означает промах
func (c *RedisCache) get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	data, err := c.client.Get(ctx, subscriptionKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get subscription from cache: %w", err)
	}

	var rec domain.SubscriptionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached subscription: %w", err)
	}
	return &rec, nil
}

// set кладет запись подписки в кеш с TTL
func (c *RedisCache) set(ctx context.Context, rec *domain.SubscriptionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal subscription: %w", err)
	}
	return c.client.Set(ctx, subscriptionKeyPrefix+rec.UserID, data, defaultCacheTTL).Err()
}

// invalidate удаляет запись подписки из кеша
func (c *RedisCache) invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, subscriptionKeyPrefix+userID).Err()
}

// CachedSubscriptionStore реализует SubscriptionStore с кешированием чтений.
// Любая запись инвалидирует кеш, ошибки кеша никогда не фатальны.
type CachedSubscriptionStore struct {
	store SubscriptionStore
	cache *RedisCache
	log   *logger.Logger
}

// NewCachedSubscriptionStore создает хранилище подписок с кешированием
func NewCachedSubscriptionStore(store SubscriptionStore, cache *RedisCache, log *logger.Logger) SubscriptionStore {
	return &CachedSubscriptionStore{
		store: store,
		cache: cache,
		log:   log,
	}
}

// Get получает запись (сначала из кеша, потом из БД)
func (s *CachedSubscriptionStore) Get(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	cached, err := s.cache.get(ctx, userID)
	if err != nil {
		s.log.Warnw("Error reading subscription from cache", "error", err, "userID", userID)
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.set(ctx, rec); err != nil {
		s.log.Warnw("Failed to cache subscription after fetching", "error", err, "userID", userID)
	}
	return rec, nil
}

// GetByCustomerID всегда идет в БД: поиск по ссылке клиента нужен только
// обработчику вебхуков, кеш по этому ключу не ведется
func (s *CachedSubscriptionStore) GetByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	return s.store.GetByCustomerID(ctx, customerID)
}

// EnsureRecord создает запись и кеширует результат
func (s *CachedSubscriptionStore) EnsureRecord(ctx context.Context, userID string) (*domain.SubscriptionRecord, bool, error) {
	rec, created, err := s.store.EnsureRecord(ctx, userID)
	if err != nil {
		return nil, false, err
	}

	if err := s.cache.set(ctx, rec); err != nil {
		s.log.Warnw("Failed to cache subscription after ensure", "error", err, "userID", userID)
	}
	return rec, created, nil
}

// SetCustomerID записывает ссылку клиента и инвалидирует кеш
func (s *CachedSubscriptionStore) SetCustomerID(ctx context.Context, userID, customerID string) error {
	if err := s.store.SetCustomerID(ctx, userID, customerID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// ApplySnapshot применяет снимок и инвалидирует кеш
func (s *CachedSubscriptionStore) ApplySnapshot(ctx context.Context, userID string, snap domain.SubscriptionSnapshot) error {
	if err := s.store.ApplySnapshot(ctx, userID, snap); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// IncrementOfferCount увеличивает счетчик и инвалидирует кеш
func (s *CachedSubscriptionStore) IncrementOfferCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.IncrementOfferCount(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return count, nil
}

// ResetPeriodIfRolledOver сбрасывает период и перекеширует запись
func (s *CachedSubscriptionStore) ResetPeriodIfRolledOver(ctx context.Context, userID string, now time.Time) (*domain.SubscriptionRecord, error) {
	rec, err := s.store.ResetPeriodIfRolledOver(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if err := s.cache.set(ctx, rec); err != nil {
		s.log.Warnw("Failed to cache subscription after period reset", "error", err, "userID", userID)
	}
	return rec, nil
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, userID string) {
	if err := s.cache.invalidate(ctx, userID); err != nil {
		s.log.Warnw("Failed to invalidate subscription cache", "error", err, "userID", userID)
	}
}
