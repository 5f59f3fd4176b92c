package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/domain/whaleorder"
	"whalewatch/pkg/errors"
)

func TestCreate_EnforcesIdentityUniqueness(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	first := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	require.NoError(t, repo.Create(ctx, first))

	// Same identity tuple, fresh id.
	dup := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyExists))

	// Any differing component makes it a distinct order.
	other := whaleorder.New("binance", whaleorder.DirectionShort, whaleorder.MarketSpot, 90000, 12)
	assert.NoError(t, repo.Create(ctx, other))
}

func TestGetByID(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	o := whaleorder.New("okx", whaleorder.DirectionLong, whaleorder.MarketFutures, 88000, 10)
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, "okx", got.Exchange)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestUpdateStatus_FillSetsTerminalFields(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	o := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 86000, 12)
	require.NoError(t, repo.Create(ctx, o))

	fillPrice := decimal.NewFromFloat(85000)
	filled, err := repo.UpdateStatus(ctx, o.ID, whaleorder.StatusFilled, &fillPrice)
	require.NoError(t, err)
	assert.Equal(t, whaleorder.StatusFilled, filled.Status)
	require.NotNil(t, filled.FilledAt)
	require.NotNil(t, filled.FillPrice)
	assert.True(t, filled.FillPrice.Equal(fillPrice))
	assert.True(t, filled.Valid())

	// A terminal order cannot transition again.
	_, err = repo.UpdateStatus(ctx, o.ID, whaleorder.StatusDeleted, nil)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestGetActive_FiltersByExchangeAndStatus(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	a := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	b := whaleorder.New("binance", whaleorder.DirectionShort, whaleorder.MarketSpot, 92000, 10)
	c := whaleorder.New("kraken", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	for _, o := range []*whaleorder.WhaleOrder{a, b, c} {
		require.NoError(t, repo.Create(ctx, o))
	}
	_, err := repo.UpdateStatus(ctx, b.ID, whaleorder.StatusDeleted, nil)
	require.NoError(t, err)

	active, err := repo.GetActive(ctx, "binance")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}

func TestFind_Filters(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	a := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 89000, 15)
	b := whaleorder.New("binance", whaleorder.DirectionShort, whaleorder.MarketFutures, 93000, 6)
	c := whaleorder.New("gemini", whaleorder.DirectionLong, whaleorder.MarketSpot, 88000, 30)
	for _, o := range []*whaleorder.WhaleOrder{a, b, c} {
		require.NoError(t, repo.Create(ctx, o))
	}

	got, err := repo.Find(ctx, whaleorder.Filter{Direction: whaleorder.DirectionLong})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.Find(ctx, whaleorder.Filter{Exchange: "binance", Market: whaleorder.MarketFutures})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b.ID, got[0].ID)

	got, err = repo.Find(ctx, whaleorder.Filter{MinSize: 20})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)

	got, err = repo.Find(ctx, whaleorder.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDeleteOlderThan(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	old := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	old.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	fresh := whaleorder.New("binance", whaleorder.DirectionShort, whaleorder.MarketSpot, 92000, 10)
	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, fresh))

	ids, err := repo.DeleteOlderThan(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, old.ID, ids[0])

	_, err = repo.GetByID(ctx, old.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// The identity slot is reusable after purge.
	again := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	assert.NoError(t, repo.Create(ctx, again))
}

func TestReadsReturnClones(t *testing.T) {
	repo := NewWhaleOrderRepository()
	ctx := context.Background()

	o := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	require.NoError(t, repo.Create(ctx, o))

	got, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	got.Status = whaleorder.StatusDeleted

	reread, err := repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, whaleorder.StatusActive, reread.Status)
}
