package exchanges

// MarketType defines supported exchange market segments.
type MarketType string

const (
	MarketTypeSpot    MarketType = "spot"
	MarketTypeFutures MarketType = "futures"
)

// Side defines which side of the book an entry sits on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// BookEntry is one whale-sized order book level normalized from an
// exchange-specific wire format. Entries are produced fresh on every poll
// and are never persisted as-is.
type BookEntry struct {
	Price    float64
	Quantity float64
	Side     Side
	Notional float64 // price x quantity in USD
	Market   MarketType
}
