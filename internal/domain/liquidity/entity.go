package liquidity

import (
	"time"
)

// Zone tags a price bucket relative to the current reference price.
type Zone string

const (
	ZoneSupport    Zone = "support"
	ZoneResistance Zone = "resistance"
)

// PriceLevel is one $100 bucket of aggregate whale liquidity with exchange
// attribution. Buy and sell liquidity are base-asset quantities in BTC.
// Derived data, recomputed every aggregation cycle.
type PriceLevel struct {
	BucketPrice   float64  `json:"bucket_price"`
	BuyLiquidity  float64  `json:"buy_liquidity"`
	SellLiquidity float64  `json:"sell_liquidity"`
	Zone          Zone     `json:"zone"`
	Exchanges     []string `json:"exchanges"`
}

// Snapshot is the complete bucketed view of current whale liquidity across
// all tracked exchanges. A snapshot is immutable once published; the
// aggregator replaces the process-wide current snapshot wholesale so readers
// never observe a partially built one.
type Snapshot struct {
	Timestamp          time.Time    `json:"timestamp"`
	ReferencePrice     float64      `json:"reference_price"`
	Levels             []PriceLevel `json:"levels"`
	TotalBuyLiquidity  float64      `json:"total_buy_liquidity"`
	TotalSellLiquidity float64      `json:"total_sell_liquidity"`
}
