package bitstamp

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
)

const (
	baseURL        = "https://www.bitstamp.net"
	requestsPerMin = 60
)

// Config configures the Bitstamp adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Bitstamp book source.
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
	return "bitstamp"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/api/v2/order_book/btcusd/", c.cfg.BaseURL)

	var res struct {
		Timestamp string     `json:"timestamp"`
		Bids      [][]string `json:"bids"`
		Asks      [][]string `json:"asks"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}

	var entries []exchanges.BookEntry
	collect := func(levels [][]string, side exchanges.Side) {
		for _, lvl := range levels {
			if len(lvl) < 2 {
				continue
			}
			price := exchanges.ParseFloat(lvl[0])
			qty := exchanges.ParseFloat(lvl[1])
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
