package bitfinex

import (
	"context"
	"fmt"
	"math"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
)

const (
	baseURL        = "https://api-pub.bitfinex.com"
	requestsPerMin = 90
)

// Config configures the Bitfinex adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Bitfinex book source.
func New(cfg Config) exchanges.BookSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = exchanges.NewHTTPClient()
	}

	return &client{
		cfg:     cfg,
		limiter: exchanges.NewLimiter(requestsPerMin),
	}
}

type client struct {
	cfg     Config
	limiter *rate.Limiter
}

func (c *client) Name() string {
	return "bitfinex"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/v2/book/tBTCUSD/P0?len=250", c.cfg.BaseURL)

	// Bitfinex v2 book levels are bare numeric triples
	// [price, count, amount]; a positive amount is a bid, negative an ask.
	var levels [][]float64

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &levels); err != nil {
		return nil, err
	}

	var entries []exchanges.BookEntry
	for _, lvl := range levels {
		if len(lvl) < 3 {
			continue
		}
		price := lvl[0]
		amount := lvl[2]

		side := exchanges.SideBid
		if amount < 0 {
			side = exchanges.SideAsk
		}
		qty := math.Abs(amount)

		e := exchanges.BookEntry{
			Price:    price,
			Quantity: qty,
			Side:     side,
			Notional: price * qty,
			Market:   exchanges.MarketTypeSpot,
		}
		if exchanges.Accept(e, minNotionalUSD, referencePrice) {
			entries = append(entries, e)
		}
	}

	return entries, nil
}
