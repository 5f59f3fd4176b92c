package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/exchanges/registry"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/internal/metrics"
	"whalewatch/pkg/errors"
	"whalewatch/pkg/logger"
)

// DefaultGracePeriod is how long an order may be absent from the book before
// it is considered cancelled.
const DefaultGracePeriod = 60 * time.Second

// PriceSource provides the current BTC reference price.
type PriceSource interface {
	Current() float64
}

// EventSink receives lifecycle notifications. Delivery is best effort and
// must never block or fail the pipeline.
type EventSink interface {
	OrderCreated(ctx context.Context, o *whaleorder.WhaleOrder)
	OrderFilled(ctx context.Context, o *whaleorder.WhaleOrder)
	OrderDeleted(ctx context.Context, o *whaleorder.WhaleOrder)
}

// Manager owns the whale order lifecycle: it reconciles fetched order books
// against the tracked active set, detects fills against the live price, and
// reaps expired rows. The persisted store is the source of truth; the
// per-exchange indexes are a cache rebuilt on startup via Bootstrap.
type Manager struct {
	store    whaleorder.Repository
	sources  *registry.Registry
	prices   PriceSource
	breakers *BreakerRegistry
	events   EventSink

	gracePeriod time.Duration

	mu       sync.Mutex // guards indexes and inflight
	indexes  map[string]*activeIndex
	inflight map[string]bool

	now func() time.Time
}

// ManagerConfig bundles Manager dependencies.
type ManagerConfig struct {
	Store       whaleorder.Repository
	Sources     *registry.Registry
	Prices      PriceSource
	Breakers    *BreakerRegistry
	Events      EventSink
	GracePeriod time.Duration
}

// NewManager creates a lifecycle manager.
func NewManager(cfg ManagerConfig) *Manager {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	breakers := cfg.Breakers
	if breakers == nil {
		breakers = NewBreakerRegistry(DefaultBreakerThreshold, DefaultBreakerCooldown)
	}

	m := &Manager{
		store:       cfg.Store,
		sources:     cfg.Sources,
		prices:      cfg.Prices,
		breakers:    breakers,
		events:      cfg.Events,
		gracePeriod: grace,
		indexes:     make(map[string]*activeIndex),
		inflight:    make(map[string]bool),
		now:         time.Now,
	}
	for _, name := range cfg.Sources.Names() {
		m.indexes[name] = newActiveIndex()
	}
	return m
}

// Bootstrap loads active orders from the store into the per-exchange indexes.
// Called once on startup before any worker runs.
func (m *Manager) Bootstrap(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	total := 0
	for name, ix := range m.indexes {
		orders, err := m.store.GetActive(ctx, name)
		if err != nil {
			return errors.Wrapf(err, "bootstrap %s", name)
		}
		for _, o := range orders {
			ix.add(o, now)
		}
		total += len(orders)
		metrics.OrdersActive.WithLabelValues(name).Set(float64(ix.len()))
	}

	logger.Infow("Bootstrapped active whale orders", "count", total)
	return nil
}

// PollExchange runs one poll-reconcile cycle for a single exchange: fetch the
// book, create newly observed whale orders, then advance disappearance state
// for tracked orders no longer on the book. Returns ErrCircuitOpen while the
// exchange's breaker suppresses polling. A cycle already in flight for the
// same exchange makes this call a no-op.
func (m *Manager) PollExchange(ctx context.Context, exchange string) error {
	source, ok := m.sources.Get(exchange)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "exchange %s", exchange)
	}

	if !m.breakers.Allow(exchange) {
		metrics.PollCycles.WithLabelValues(exchange, "skipped").Inc()
		return errors.Wrapf(errors.ErrCircuitOpen, "poll %s", exchange)
	}

	m.mu.Lock()
	if m.inflight[exchange] {
		m.mu.Unlock()
		metrics.PollCycles.WithLabelValues(exchange, "skipped").Inc()
		return nil
	}
	m.inflight[exchange] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.inflight, exchange)
		m.mu.Unlock()
	}()

	referencePrice := m.prices.Current()
	minNotional := m.sources.MinNotionalUSD(exchange)

	start := m.now()
	entries, err := source.FetchWhaleOrders(ctx, minNotional, referencePrice)
	metrics.FetchDuration.WithLabelValues(exchange).Observe(m.now().Sub(start).Seconds())

	if err != nil {
		m.breakers.RecordFailure(exchange)
		metrics.PollCycles.WithLabelValues(exchange, "error").Inc()
		logger.Warnw("Order book fetch failed", "exchange", exchange, "error", err)
		return err
	}
	m.breakers.RecordSuccess(exchange)

	if err := m.reconcile(ctx, exchange, entries); err != nil {
		metrics.PollCycles.WithLabelValues(exchange, "error").Inc()
		return err
	}

	metrics.PollCycles.WithLabelValues(exchange, "success").Inc()
	return nil
}

// reconcile merges one fetched book into the tracked set. Creation runs
// before the disappearance pass so orders created this cycle count as seen.
func (m *Manager) reconcile(ctx context.Context, exchange string, entries []exchanges.BookEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ix := m.indexes[exchange]
	now := m.now().UTC()

	for _, e := range entries {
		if t, ok := ix.match(e); ok {
			ix.markSeen(t, now)
			continue
		}

		o := whaleorder.New(exchange, directionOf(e.Side), marketOf(e.Market), e.Price, e.Quantity)
		if err := m.store.Create(ctx, o); err != nil {
			if errors.Is(err, errors.ErrAlreadyExists) {
				continue
			}
			return errors.Wrapf(err, "create whale order on %s", exchange)
		}

		ix.add(o, now)
		metrics.OrdersCreated.WithLabelValues(exchange).Inc()
		logger.Infow("Whale order created",
			"exchange", exchange,
			"direction", o.Direction,
			"market", o.Market,
			"price", e.Price,
			"size", e.Quantity,
			"notional_usd", e.Notional,
		)
		if m.events != nil {
			m.events.OrderCreated(ctx, o)
		}
	}

	for _, t := range ix.all() {
		if t.lastSeen.Equal(now) {
			continue
		}
		ix.markMissing(t, now)
	}

	for _, t := range ix.missingLongerThan(m.gracePeriod, now) {
		o, err := m.store.UpdateStatus(ctx, t.order.ID, whaleorder.StatusDeleted, nil)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				ix.remove(t.order.ID)
				continue
			}
			return errors.Wrapf(err, "delete whale order %s", t.order.ID)
		}

		ix.remove(o.ID)
		metrics.OrdersDeleted.WithLabelValues(exchange).Inc()
		logger.Infow("Whale order deleted",
			"exchange", exchange,
			"id", o.ID,
			"missing_for", now.Sub(t.missingSince),
		)
		if m.events != nil {
			m.events.OrderDeleted(ctx, o)
		}
	}

	metrics.OrdersActive.WithLabelValues(exchange).Set(float64(ix.len()))
	return nil
}

// CheckFills compares every tracked active order against the current price
// and marks crossed limits as filled. Long orders fill when the price drops
// to or below the limit, short orders when it rises to or above.
func (m *Manager) CheckFills(ctx context.Context) error {
	price := m.prices.Current()
	if price <= 0 {
		return errors.Wrap(errors.ErrPriceUnavailable, "fill check")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fillPrice := decimal.NewFromFloat(price)

	for exchange, ix := range m.indexes {
		for _, t := range ix.all() {
			if !crossed(t.order, price) {
				continue
			}

			o, err := m.store.UpdateStatus(ctx, t.order.ID, whaleorder.StatusFilled, &fillPrice)
			if err != nil {
				if errors.Is(err, errors.ErrNotFound) {
					ix.remove(t.order.ID)
					continue
				}
				return errors.Wrapf(err, "fill whale order %s", t.order.ID)
			}

			ix.remove(o.ID)
			metrics.OrdersFilled.WithLabelValues(exchange).Inc()
			logger.Infow("Whale order filled",
				"exchange", exchange,
				"id", o.ID,
				"direction", o.Direction,
				"limit_price", o.PriceF(),
				"fill_price", price,
			)
			if m.events != nil {
				m.events.OrderFilled(ctx, o)
			}
		}
		metrics.OrdersActive.WithLabelValues(exchange).Set(float64(ix.len()))
	}

	return nil
}

func crossed(o *whaleorder.WhaleOrder, price float64) bool {
	switch o.Direction {
	case whaleorder.DirectionLong:
		return price <= o.PriceF()
	case whaleorder.DirectionShort:
		return price >= o.PriceF()
	}
	return false
}

// Reap purges orders older than the retention window from the store and
// drops any of them still present in the indexes.
func (m *Manager) Reap(ctx context.Context, retention time.Duration) (int, error) {
	ids, err := m.store.DeleteOlderThan(ctx, retention)
	if err != nil {
		return 0, errors.Wrap(err, "reap whale orders")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	for _, ix := range m.indexes {
		for _, id := range ids {
			ix.remove(id)
		}
	}
	m.mu.Unlock()

	logger.Infow("Reaped expired whale orders", "count", len(ids), "retention", retention)
	return len(ids), nil
}

// ActiveOrders returns a copy of the currently tracked active orders, all
// exchanges combined. Used by the liquidity aggregator.
func (m *Manager) ActiveOrders() []*whaleorder.WhaleOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*whaleorder.WhaleOrder
	for _, ix := range m.indexes {
		for _, t := range ix.all() {
			clone := *t.order
			out = append(out, &clone)
		}
	}
	return out
}

// Exchanges returns the exchange ids the manager polls.
func (m *Manager) Exchanges() []string {
	return m.sources.Names()
}
