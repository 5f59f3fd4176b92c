package tracker

import (
	"math"
	"time"

	"github.com/google/uuid"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/domain/whaleorder"
)

const (
	// priceTolerance and sizeTolerance define when a freshly fetched book
	// entry is "the same order" as one already tracked. Exchanges round
	// prices and sizes differently between responses, so exact matching
	// would re-create orders every cycle.
	priceTolerance = 0.01 // USD
	sizeTolerance  = 0.01 // BTC
)

// tracked pairs a persisted active order with its presence state. An order is
// either confirmed present (missingSince zero) or missing since a known time;
// once missing for the grace period it is deleted.
type tracked struct {
	order        *whaleorder.WhaleOrder
	lastSeen     time.Time
	missingSince time.Time
}

// activeIndex is the per-exchange in-memory view of active orders. It is the
// dedup authority during a poll cycle and the presence ledger between cycles.
// Not safe for concurrent use; the manager serializes cycles per exchange.
type activeIndex struct {
	entries map[uuid.UUID]*tracked
}

func newActiveIndex() *activeIndex {
	return &activeIndex{entries: make(map[uuid.UUID]*tracked)}
}

func (ix *activeIndex) len() int {
	return len(ix.entries)
}

func (ix *activeIndex) add(o *whaleorder.WhaleOrder, now time.Time) {
	ix.entries[o.ID] = &tracked{order: o, lastSeen: now}
}

func (ix *activeIndex) remove(id uuid.UUID) {
	delete(ix.entries, id)
}

// match finds a tracked order equal to the book entry within tolerance.
// Direction and market must match exactly.
func (ix *activeIndex) match(e exchanges.BookEntry) (*tracked, bool) {
	dir := directionOf(e.Side)
	market := marketOf(e.Market)

	for _, t := range ix.entries {
		o := t.order
		if o.Direction != dir || o.Market != market {
			continue
		}
		if math.Abs(o.PriceF()-e.Price) <= priceTolerance && math.Abs(o.SizeF()-e.Quantity) <= sizeTolerance {
			return t, true
		}
	}
	return nil, false
}

// markSeen confirms presence and clears any pending disappearance.
func (ix *activeIndex) markSeen(t *tracked, now time.Time) {
	t.lastSeen = now
	t.missingSince = time.Time{}
}

// markMissing starts the disappearance clock unless it is already running.
func (ix *activeIndex) markMissing(t *tracked, now time.Time) {
	if t.missingSince.IsZero() {
		t.missingSince = now
	}
}

// missingLongerThan returns every tracked order that has been continuously
// absent from the book for at least the grace period.
func (ix *activeIndex) missingLongerThan(grace time.Duration, now time.Time) []*tracked {
	var out []*tracked
	for _, t := range ix.entries {
		if !t.missingSince.IsZero() && now.Sub(t.missingSince) >= grace {
			out = append(out, t)
		}
	}
	return out
}

// all returns every tracked entry.
func (ix *activeIndex) all() []*tracked {
	out := make([]*tracked, 0, len(ix.entries))
	for _, t := range ix.entries {
		out = append(out, t)
	}
	return out
}

func directionOf(s exchanges.Side) whaleorder.Direction {
	if s == exchanges.SideBid {
		return whaleorder.DirectionLong
	}
	return whaleorder.DirectionShort
}

func marketOf(m exchanges.MarketType) whaleorder.Market {
	if m == exchanges.MarketTypeFutures {
		return whaleorder.MarketFutures
	}
	return whaleorder.MarketSpot
}
