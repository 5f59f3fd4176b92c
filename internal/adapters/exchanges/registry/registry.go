package registry

import (
	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/exchanges/binance"
	"whalewatch/internal/adapters/exchanges/bitfinex"
	"whalewatch/internal/adapters/exchanges/bitstamp"
	"whalewatch/internal/adapters/exchanges/bybit"
	"whalewatch/internal/adapters/exchanges/coinbase"
	"whalewatch/internal/adapters/exchanges/gemini"
	"whalewatch/internal/adapters/exchanges/htx"
	"whalewatch/internal/adapters/exchanges/kraken"
	"whalewatch/internal/adapters/exchanges/kucoin"
	"whalewatch/internal/adapters/exchanges/okx"
)

// Per-exchange whale notional floors in USD. Deeper books carry a lower
// floor; thinner venues need a higher one to keep noise out.
var notionalFloors = map[string]float64{
	"binance":  450_000,
	"bybit":    500_000,
	"okx":      600_000,
	"coinbase": 750_000,
	"kraken":   1_000_000,
	"bitstamp": 1_500_000,
	"gemini":   2_000_000,
	"kucoin":   2_500_000,
	"htx":      4_000_000,
	"bitfinex": 8_400_000,
}

const defaultNotionalFloor = 1_000_000

// Registry holds every configured exchange adapter keyed by exchange id.
// Orchestration treats all sources uniformly; the heterogeneous parsing
// lives behind the BookSource interface.
type Registry struct {
	sources map[string]exchanges.BookSource
	names   []string
}

// New builds a registry with all production adapters.
func New() *Registry {
	return FromSources(
		binance.New(binance.Config{}),
		bybit.New(bybit.Config{}),
		kraken.New(kraken.Config{}),
		bitfinex.New(bitfinex.Config{}),
		coinbase.New(coinbase.Config{}),
		okx.New(okx.Config{}),
		gemini.New(gemini.Config{}),
		bitstamp.New(bitstamp.Config{}),
		kucoin.New(kucoin.Config{}),
		htx.New(htx.Config{}),
	)
}

// FromSources builds a registry from explicit sources. Tests use this to
// inject fakes.
func FromSources(sources ...exchanges.BookSource) *Registry {
	r := &Registry{sources: make(map[string]exchanges.BookSource, len(sources))}
	for _, s := range sources {
		if _, ok := r.sources[s.Name()]; ok {
			continue
		}
		r.sources[s.Name()] = s
		r.names = append(r.names, s.Name())
	}
	return r
}

// Get returns the adapter for an exchange id.
func (r *Registry) Get(name string) (exchanges.BookSource, bool) {
	s, ok := r.sources[name]
	return s, ok
}

// All returns every registered adapter in registration order.
func (r *Registry) All() []exchanges.BookSource {
	out := make([]exchanges.BookSource, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.sources[name])
	}
	return out
}

// Names returns the registered exchange ids in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// MinNotionalUSD returns the whale notional floor for an exchange.
func (r *Registry) MinNotionalUSD(name string) float64 {
	if floor, ok := notionalFloors[name]; ok {
		return floor
	}
	return defaultNotionalFloor
}
