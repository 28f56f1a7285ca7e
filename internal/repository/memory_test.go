package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offerflow/billing-service/internal/domain"
	"github.com/offerflow/billing-service/pkg/logger"
)

func newTestStore(t *testing.T) *InMemorySubscriptionStore {
	t.Helper()
	return NewInMemorySubscriptionStore(logger.New(logger.DEBUG))
}

func TestEnsureRecord_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec, created, err := store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.PlanFree, rec.PlanID)
	assert.Equal(t, domain.SubscriptionStatusNone, rec.Status)

	_, created, err = store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSetCustomerID_NeverOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, store.SetCustomerID(ctx, "user-1", "cus_first"))
	require.NoError(t, store.SetCustomerID(ctx, "user-1", "cus_second"))

	rec, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_first", rec.StripeCustomerID, "first persisted customer reference wins")
}

func TestApplySnapshot_RejectsInvalidPeriod(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)

	now := time.Now()
	err = store.ApplySnapshot(ctx, "user-1", domain.SubscriptionSnapshot{
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
		PlanID:         domain.PlanProMonthly,
		Status:         domain.SubscriptionStatusActive,
		PeriodStart:    now,
		PeriodEnd:      now.Add(-time.Hour),
	})
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestIncrementOfferCount_ConcurrentIncrementsLoseNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := store.IncrementOfferCount(ctx, "user-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, goroutines, rec.OffersCreated)
}

func TestResetPeriodIfRolledOver_KeepsCurrentWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.EnsureRecord(ctx, "user-1")
	require.NoError(t, err)
	_, err = store.IncrementOfferCount(ctx, "user-1")
	require.NoError(t, err)

	// Окно периода еще не закончилось, счетчик не сбрасывается
	rec, err := store.ResetPeriodIfRolledOver(ctx, "user-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.OffersCreated)
}

func TestInMemoryEventLedger_MarkProcessed(t *testing.T) {
	ledger := NewInMemoryEventLedger()
	ctx := context.Background()

	first, err := ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, first)

	first, err = ledger.MarkProcessed(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, first)
}
