package aggregator

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/exchanges/registry"
	"whalewatch/internal/adapters/redis"
	"whalewatch/internal/domain/liquidity"
	"whalewatch/internal/metrics"
	"whalewatch/internal/workers"
	"whalewatch/pkg/errors"
	"whalewatch/pkg/logger"
)

// DefaultBucketSize is the bucket width in USD for liquidity aggregation.
const DefaultBucketSize = 100

// PriceSource provides the current BTC reference price.
type PriceSource interface {
	Current() float64
}

// SnapshotSink receives each freshly published snapshot.
type SnapshotSink interface {
	LiquidityUpdated(ctx context.Context, s *liquidity.Snapshot)
}

const (
	snapshotCacheKey = "whalewatch:liquidity_snapshot"
	snapshotCacheTTL = time.Minute
)

// Aggregator builds bucketed liquidity snapshots across all exchanges. The
// current snapshot is swapped atomically: readers always see either the
// previous complete snapshot or the new one, never a partial view.
type Aggregator struct {
	sources    *registry.Registry
	prices     PriceSource
	sink       SnapshotSink
	cache      *redis.Client // optional
	bucketSize float64

	current atomic.Pointer[liquidity.Snapshot]

	log *logger.Logger
}

// New creates a liquidity aggregator. cache may be nil; a non-positive bucket
// size falls back to the default.
func New(sources *registry.Registry, prices PriceSource, sink SnapshotSink, cache *redis.Client, bucketSize float64) *Aggregator {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return &Aggregator{
		sources:    sources,
		prices:     prices,
		sink:       sink,
		cache:      cache,
		bucketSize: bucketSize,
		log:        logger.Get().With("component", "aggregator"),
	}
}

// Latest returns the most recent published snapshot, or nil before the first
// aggregation cycle completes.
func (a *Aggregator) Latest() *liquidity.Snapshot {
	return a.current.Load()
}

type fetchResult struct {
	exchange string
	entries  []exchanges.BookEntry
	err      error
}

// Aggregate runs one aggregation cycle: fan out to every exchange, bucket
// the accepted entries and publish the snapshot. A failing exchange drops
// out of this cycle only; the snapshot is built from whoever answered.
func (a *Aggregator) Aggregate(ctx context.Context) error {
	referencePrice := a.prices.Current()
	if referencePrice <= 0 {
		return errors.Wrap(errors.ErrPriceUnavailable, "aggregate")
	}

	sources := a.sources.All()
	results := make(chan fetchResult, len(sources))

	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func(s exchanges.BookSource) {
			defer wg.Done()
			entries, err := s.FetchWhaleOrders(ctx, a.sources.MinNotionalUSD(s.Name()), referencePrice)
			results <- fetchResult{exchange: s.Name(), entries: entries, err: err}
		}(source)
	}
	wg.Wait()
	close(results)

	// Buckets accumulate base-asset quantity in BTC, not USD notional.
	type bucket struct {
		buy       float64
		sell      float64
		exchanges map[string]struct{}
	}
	buckets := make(map[float64]*bucket)

	responded := 0
	for res := range results {
		if res.err != nil {
			a.log.Debugw("Exchange excluded from snapshot", "exchange", res.exchange, "error", res.err)
			continue
		}
		responded++

		for _, e := range res.entries {
			key := math.Floor(e.Price/a.bucketSize) * a.bucketSize
			b, ok := buckets[key]
			if !ok {
				b = &bucket{exchanges: make(map[string]struct{})}
				buckets[key] = b
			}
			if e.Side == exchanges.SideBid {
				b.buy += e.Quantity
			} else {
				b.sell += e.Quantity
			}
			b.exchanges[res.exchange] = struct{}{}
		}
	}

	snapshot := &liquidity.Snapshot{
		Timestamp:      time.Now().UTC(),
		ReferencePrice: referencePrice,
		Levels:         make([]liquidity.PriceLevel, 0, len(buckets)),
	}

	for price, b := range buckets {
		zone := liquidity.ZoneResistance
		if price < referencePrice {
			zone = liquidity.ZoneSupport
		}

		names := make([]string, 0, len(b.exchanges))
		for name := range b.exchanges {
			names = append(names, name)
		}
		sort.Strings(names)

		snapshot.Levels = append(snapshot.Levels, liquidity.PriceLevel{
			BucketPrice:   price,
			BuyLiquidity:  b.buy,
			SellLiquidity: b.sell,
			Zone:          zone,
			Exchanges:     names,
		})
		snapshot.TotalBuyLiquidity += b.buy
		snapshot.TotalSellLiquidity += b.sell
	}

	sort.Slice(snapshot.Levels, func(i, j int) bool {
		return snapshot.Levels[i].BucketPrice < snapshot.Levels[j].BucketPrice
	})

	a.current.Store(snapshot)

	if a.cache != nil {
		if err := a.cache.Set(ctx, snapshotCacheKey, snapshot, snapshotCacheTTL); err != nil {
			a.log.Debugw("Snapshot cache write failed", "error", err)
		}
	}

	metrics.SnapshotTimestamp.Set(float64(snapshot.Timestamp.Unix()))
	metrics.SnapshotLevels.Set(float64(len(snapshot.Levels)))
	a.log.Debugw("Liquidity snapshot published",
		"levels", len(snapshot.Levels),
		"exchanges", responded,
		"total_buy_btc", snapshot.TotalBuyLiquidity,
		"total_sell_btc", snapshot.TotalSellLiquidity,
	)

	if a.sink != nil {
		a.sink.LiquidityUpdated(ctx, snapshot)
	}
	return nil
}

// Worker runs the aggregation cycle on an interval.
type Worker struct {
	*workers.BaseWorker
	aggregator *Aggregator
}

// NewWorker creates the aggregation worker.
func NewWorker(a *Aggregator, interval time.Duration) *Worker {
	return &Worker{
		BaseWorker: workers.NewBaseWorker("liquidity_aggregator", interval, true),
		aggregator: a,
	}
}

// Run executes one aggregation cycle.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.aggregator.Aggregate(ctx); err != nil {
		w.RecordError(err)
		return err
	}
	w.RecordRun()
	return nil
}
