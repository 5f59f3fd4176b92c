package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/exchanges/registry"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/internal/repository/memory"
	"whalewatch/pkg/errors"
)

type fakeSource struct {
	mu      sync.Mutex
	name    string
	entries []exchanges.BookEntry
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]exchanges.BookEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeSource) set(entries []exchanges.BookEntry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
	f.err = err
}

type fakePrices struct {
	mu sync.Mutex
	p  float64
}

func (f *fakePrices) Current() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.p
}

func (f *fakePrices) set(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.p = p
}

type recordedEvent struct {
	kind  string
	order *whaleorder.WhaleOrder
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) OrderCreated(ctx context.Context, o *whaleorder.WhaleOrder) {
	r.record("new_order", o)
}

func (r *eventRecorder) OrderFilled(ctx context.Context, o *whaleorder.WhaleOrder) {
	r.record("order_filled", o)
}

func (r *eventRecorder) OrderDeleted(ctx context.Context, o *whaleorder.WhaleOrder) {
	r.record("order_deleted", o)
}

func (r *eventRecorder) record(kind string, o *whaleorder.WhaleOrder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: kind, order: o})
}

func (r *eventRecorder) ofKind(kind string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type testPipeline struct {
	manager *Manager
	source  *fakeSource
	store   *memory.WhaleOrderRepository
	prices  *fakePrices
	events  *eventRecorder
	clock   time.Time
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	tp := &testPipeline{
		source: &fakeSource{name: "binance"},
		store:  memory.NewWhaleOrderRepository(),
		prices: &fakePrices{p: 90000},
		events: &eventRecorder{},
		clock:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}

	tp.manager = NewManager(ManagerConfig{
		Store:       tp.store,
		Sources:     registry.FromSources(tp.source),
		Prices:      tp.prices,
		Events:      tp.events,
		GracePeriod: 60 * time.Second,
	})
	tp.manager.now = func() time.Time { return tp.clock }

	breakers := tp.manager.breakers
	breakers.now = tp.manager.now

	return tp
}

func (tp *testPipeline) advance(d time.Duration) {
	tp.clock = tp.clock.Add(d)
}

func whaleBid(price, qty float64) exchanges.BookEntry {
	return exchanges.BookEntry{
		Price:    price,
		Quantity: qty,
		Side:     exchanges.SideBid,
		Notional: price * qty,
		Market:   exchanges.MarketTypeSpot,
	}
}

func whaleAsk(price, qty float64) exchanges.BookEntry {
	return exchanges.BookEntry{
		Price:    price,
		Quantity: qty,
		Side:     exchanges.SideAsk,
		Notional: price * qty,
		Market:   exchanges.MarketTypeSpot,
	}
}

func TestPollExchange_CreatesOrderFromWhaleBid(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	// 12 BTC bid at 90k is a 1.08M USD whale order.
	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)

	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	o := orders[0]
	assert.Equal(t, whaleorder.DirectionLong, o.Direction)
	assert.Equal(t, whaleorder.MarketSpot, o.Market)
	assert.Equal(t, 90000.0, o.PriceF())
	assert.Equal(t, 12.0, o.SizeF())
	assert.Equal(t, whaleorder.StatusActive, o.Status)

	created := tp.events.ofKind("new_order")
	require.Len(t, created, 1)
	assert.Equal(t, o.ID, created[0].order.ID)
}

func TestPollExchange_RepeatedSightingIsNoOp(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	// Same order again, with sub-tolerance rounding differences.
	tp.advance(20 * time.Second)
	tp.source.set([]exchanges.BookEntry{whaleBid(90000.005, 12.004)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Len(t, tp.events.ofKind("new_order"), 1)
}

func TestPollExchange_DistinctOrdersBeyondTolerance(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{
		whaleBid(90000, 12),
		whaleBid(90000.05, 12), // 5 cents away: a different order
		whaleAsk(91000, 12),
	}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}

func TestPollExchange_GracePeriodDeletion(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	// Order disappears from the book. Three 30s cycles: missing at t+30,
	// still inside grace at t+60, past the 60s grace at t+90.
	tp.source.set(nil, nil)
	for i := 0; i < 2; i++ {
		tp.advance(30 * time.Second)
		require.NoError(t, tp.manager.PollExchange(ctx, "binance"))
		orders, err := tp.store.GetActive(ctx, "binance")
		require.NoError(t, err)
		assert.Len(t, orders, 1, "order must survive the grace period")
	}

	tp.advance(30 * time.Second)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Empty(t, orders)

	deleted := tp.events.ofKind("order_deleted")
	require.Len(t, deleted, 1)
	assert.Equal(t, whaleorder.StatusDeleted, deleted[0].order.Status)
}

func TestPollExchange_ReappearanceResetsGraceClock(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	entry := whaleBid(90000, 12)
	tp.source.set([]exchanges.BookEntry{entry}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	// Missing for 40s, then back, then missing again: the clock restarts.
	tp.source.set(nil, nil)
	tp.advance(40 * time.Second)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	tp.source.set([]exchanges.BookEntry{entry}, nil)
	tp.advance(10 * time.Second)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	tp.source.set(nil, nil)
	tp.advance(40 * time.Second)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPollExchange_BreakerSkipsAfterConsecutiveFailures(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set(nil, errors.ErrExchangeUnavailable)
	for i := 0; i < 3; i++ {
		require.Error(t, tp.manager.PollExchange(ctx, "binance"))
	}

	// Breaker open: the next poll reports the open circuit without fetching.
	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	err := tp.manager.PollExchange(ctx, "binance")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCircuitOpen))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Empty(t, orders, "open breaker must suppress polling")

	// After the cooldown the probe succeeds and polling resumes.
	tp.advance(2 * time.Minute)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err = tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPollExchange_FetchFailureDoesNotAdvanceGraceClock(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	// Fetch failures are not evidence of disappearance.
	tp.source.set(nil, errors.ErrExchangeUnavailable)
	tp.advance(2 * time.Minute)
	require.Error(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestCheckFills_LongFillsOnDrop(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	// Long order with limit 86000 while the price is 90000.
	tp.source.set([]exchanges.BookEntry{whaleBid(86000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	// Price above the limit: nothing fills.
	tp.prices.set(87000)
	require.NoError(t, tp.manager.CheckFills(ctx))
	assert.Empty(t, tp.events.ofKind("order_filled"))

	// Price crosses the limit.
	tp.prices.set(85000)
	require.NoError(t, tp.manager.CheckFills(ctx))

	filled := tp.events.ofKind("order_filled")
	require.Len(t, filled, 1)

	o := filled[0].order
	assert.Equal(t, whaleorder.StatusFilled, o.Status)
	require.NotNil(t, o.FillPrice)
	assert.Equal(t, 85000.0, o.FillPrice.InexactFloat64())
	require.NotNil(t, o.FilledAt)

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCheckFills_ShortFillsOnRise(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{whaleAsk(94000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	tp.prices.set(94000) // at the limit counts as crossed
	require.NoError(t, tp.manager.CheckFills(ctx))

	filled := tp.events.ofKind("order_filled")
	require.Len(t, filled, 1)
	assert.Equal(t, whaleorder.DirectionShort, filled[0].order.Direction)
}

func TestCheckFills_FilledOrderIsTerminal(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	tp.source.set([]exchanges.BookEntry{whaleBid(86000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	tp.prices.set(85000)
	require.NoError(t, tp.manager.CheckFills(ctx))
	require.NoError(t, tp.manager.CheckFills(ctx))

	assert.Len(t, tp.events.ofKind("order_filled"), 1)
}

func TestBootstrap_RestoresActiveOrders(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	seeded := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	require.NoError(t, tp.store.Create(ctx, seeded))

	require.NoError(t, tp.manager.Bootstrap(ctx))

	// The restored order dedups against its own sighting.
	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.GetActive(ctx, "binance")
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Empty(t, tp.events.ofKind("new_order"))
}

func TestReap_PurgesOldOrdersAndIndexes(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	old := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	old.CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	require.NoError(t, tp.store.Create(ctx, old))
	require.NoError(t, tp.manager.Bootstrap(ctx))

	n, err := tp.manager.Reap(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = tp.store.GetByID(ctx, old.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	// The index entry is gone too: the same book entry recreates the order.
	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))
	assert.Len(t, tp.events.ofKind("new_order"), 1)
}

func TestPollExchange_DuplicateCreateFromStoreIsBenign(t *testing.T) {
	tp := newTestPipeline(t)
	ctx := context.Background()

	// Another instance already persisted the identical order, but this
	// manager's index does not know it yet.
	existing := whaleorder.New("binance", whaleorder.DirectionLong, whaleorder.MarketSpot, 90000, 12)
	require.NoError(t, tp.store.Create(ctx, existing))

	tp.source.set([]exchanges.BookEntry{whaleBid(90000, 12)}, nil)
	require.NoError(t, tp.manager.PollExchange(ctx, "binance"))

	orders, err := tp.store.Find(ctx, whaleorder.Filter{Exchange: "binance"})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
