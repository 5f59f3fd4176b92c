package aggregator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/exchanges/registry"
	"whalewatch/internal/domain/liquidity"
	"whalewatch/pkg/errors"
)

type fakeSource struct {
	name    string
	entries []exchanges.BookEntry
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	return f.entries, f.err
}

type fixedPrice float64

func (p fixedPrice) Current() float64 { return float64(p) }

func entry(price, qty float64, side exchanges.Side) exchanges.BookEntry {
	return exchanges.BookEntry{
		Price:    price,
		Quantity: qty,
		Side:     side,
		Notional: price * qty,
		Market:   exchanges.MarketTypeSpot,
	}
}

func TestAggregate_BucketsAndZones(t *testing.T) {
	sources := registry.FromSources(
		&fakeSource{name: "binance", entries: []exchanges.BookEntry{
			entry(89950, 10, exchanges.SideBid), // bucket 89900
			entry(89910, 5, exchanges.SideBid),  // bucket 89900
			entry(91020, 8, exchanges.SideAsk),  // bucket 91000
		}},
		&fakeSource{name: "kraken", entries: []exchanges.BookEntry{
			entry(89930, 12, exchanges.SideBid), // bucket 89900 again
		}},
	)

	a := New(sources, fixedPrice(90000), nil, nil, 100)
	require.NoError(t, a.Aggregate(context.Background()))

	s := a.Latest()
	require.NotNil(t, s)
	assert.Equal(t, 90000.0, s.ReferencePrice)
	require.Len(t, s.Levels, 2)

	support := s.Levels[0]
	assert.Equal(t, 89900.0, support.BucketPrice)
	assert.Equal(t, liquidity.ZoneSupport, support.Zone)
	assert.InDelta(t, 10+5+12, support.BuyLiquidity, 1e-9)
	assert.Zero(t, support.SellLiquidity)
	assert.Equal(t, []string{"binance", "kraken"}, support.Exchanges)

	resistance := s.Levels[1]
	assert.Equal(t, 91000.0, resistance.BucketPrice)
	assert.Equal(t, liquidity.ZoneResistance, resistance.Zone)
	assert.InDelta(t, 8, resistance.SellLiquidity, 1e-9)
	assert.Equal(t, []string{"binance"}, resistance.Exchanges)

	assert.InDelta(t, support.BuyLiquidity, s.TotalBuyLiquidity, 1e-9)
	assert.InDelta(t, resistance.SellLiquidity, s.TotalSellLiquidity, 1e-9)
}

// Level liquidity is the summed order quantity in BTC. Summing USD notionals
// instead would inflate every bucket by the price.
func TestAggregate_LiquidityIsBaseQuantity(t *testing.T) {
	sources := registry.FromSources(
		&fakeSource{name: "binance", entries: []exchanges.BookEntry{
			entry(89950, 10, exchanges.SideBid),
			entry(91020, 8, exchanges.SideAsk),
		}},
	)

	a := New(sources, fixedPrice(90000), nil, nil, 100)
	require.NoError(t, a.Aggregate(context.Background()))

	s := a.Latest()
	require.NotNil(t, s)
	assert.InDelta(t, 10, s.TotalBuyLiquidity, 1e-9)
	assert.InDelta(t, 8, s.TotalSellLiquidity, 1e-9)
}

func TestAggregate_FailingExchangeIsExcluded(t *testing.T) {
	sources := registry.FromSources(
		&fakeSource{name: "binance", entries: []exchanges.BookEntry{
			entry(90050, 10, exchanges.SideAsk),
		}},
		&fakeSource{name: "htx", err: errors.ErrExchangeUnavailable},
	)

	a := New(sources, fixedPrice(90000), nil, nil, 100)
	require.NoError(t, a.Aggregate(context.Background()))

	s := a.Latest()
	require.NotNil(t, s)
	require.Len(t, s.Levels, 1)
	assert.Equal(t, []string{"binance"}, s.Levels[0].Exchanges)
}

func TestLatest_NilBeforeFirstCycle(t *testing.T) {
	a := New(registry.FromSources(), fixedPrice(90000), nil, nil, 100)
	assert.Nil(t, a.Latest())
}

func TestAggregate_PriceUnavailable(t *testing.T) {
	a := New(registry.FromSources(), fixedPrice(0), nil, nil, 100)
	err := a.Aggregate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPriceUnavailable))
}

// Concurrent readers must always observe a complete snapshot, never a
// partially built one, while cycles run.
func TestAggregate_AtomicSwapUnderConcurrentReads(t *testing.T) {
	sources := registry.FromSources(
		&fakeSource{name: "binance", entries: []exchanges.BookEntry{
			entry(89950, 10, exchanges.SideBid),
			entry(91020, 8, exchanges.SideAsk),
		}},
	)

	a := New(sources, fixedPrice(90000), nil, nil, 100)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				s := a.Latest()
				if s == nil {
					continue
				}
				// A published snapshot is always internally consistent.
				assert.Len(t, s.Levels, 2)
				assert.False(t, s.Timestamp.IsZero())
			}
		}()
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		require.NoError(t, a.Aggregate(context.Background()))
	}
	close(done)
	wg.Wait()
}
