package coinbase

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
)

const (
	baseURL        = "https://api.exchange.coinbase.com"
	requestsPerMin = 180
)

// Config configures the Coinbase adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Coinbase book source.
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
	return "coinbase"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/products/BTC-USD/book?level=2", c.cfg.BaseURL)

	// Coinbase level-2 entries are [price string, size string, order count].
	var res struct {
		Sequence int64           `json:"sequence"`
		Bids     [][]interface{} `json:"bids"`
		Asks     [][]interface{} `json:"asks"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}

	var entries []exchanges.BookEntry
	collect := func(levels [][]interface{}, side exchanges.Side) {
		for _, lvl := range levels {
			if len(lvl) < 2 {
				continue
			}
			price := exchanges.ToFloat(lvl[0])
			qty := exchanges.ToFloat(lvl[1])
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
	}

	collect(res.Bids, exchanges.SideBid)
	collect(res.Asks, exchanges.SideAsk)

	return entries, nil
}
