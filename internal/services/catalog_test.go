package services

import (
	"context"
	"testing"

	"github.com/farellandr/canteen/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSale_RespectsLimitOnlyWhenAsked(t *testing.T) {
	f := newFixture(t)
	meal := testutil.CreateMeal(t, f.db, "Vada Pav", "20", 3)

	require.NoError(t, f.catalog.RecordSale(f.db, meal.ID, 2, true))
	assert.ErrorIs(t, f.catalog.RecordSale(f.db, meal.ID, 2, true), ErrDailyLimitReached)
	require.NoError(t, f.catalog.RecordSale(f.db, meal.ID, 2, false))

	reloaded := testutil.ReloadMeal(t, f.db, meal.ID)
	assert.Equal(t, 4, reloaded.SoldToday)
	assert.Equal(t, 2, reloaded.TotalOrders)

	assert.ErrorIs(t, f.catalog.RecordSale(f.db, uuid.New(), 1, false), ErrNotFound)
}

func TestResetDailyCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sold := testutil.CreateMeal(t, f.db, "Vada Pav", "20", 0)
	testutil.CreateMeal(t, f.db, "Poha", "25", 0)
	require.NoError(t, f.catalog.RecordSale(f.db, sold.ID, 5, false))

	n, err := f.catalog.ResetDailyCounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	reloaded := testutil.ReloadMeal(t, f.db, sold.ID)
	assert.Zero(t, reloaded.SoldToday)
	assert.Equal(t, 1, reloaded.TotalOrders)
}

func TestGetMeal(t *testing.T) {
	f := newFixture(t)
	meal := testutil.CreateMeal(t, f.db, "Poha", "25", 0)

	got, err := f.catalog.GetMeal(context.Background(), meal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Poha", got.Name)
	assert.True(t, got.HasCapacity(1000))

	_, err = f.catalog.GetMeal(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
