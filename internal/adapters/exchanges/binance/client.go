package binance

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
)

const (
	spotBaseURL    = "https://api.binance.com"
	futuresBaseURL = "https://fapi.binance.com"
	bookDepth      = 500
	requestsPerMin = 1200
)

// Config configures the Binance adapter.
type Config struct {
	SpotBaseURL    string
	FuturesBaseURL string
	HTTPClient     *http.Client
}

// New creates a new Binance book source. Binance requires separate spot and
// futures depth calls; both are fetched concurrently and concatenated.
func New(cfg Config) exchanges.BookSource {
	if cfg.SpotBaseURL == "" {
		cfg.SpotBaseURL = spotBaseURL
	}
	if cfg.FuturesBaseURL == "" {
		cfg.FuturesBaseURL = futuresBaseURL
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
	return "binance"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	type result struct {
		entries []exchanges.BookEntry
		err     error
	}

	results := make(chan result, 2)
	fetch := func(url string, market exchanges.MarketType) {
		entries, err := c.fetchBook(ctx, url, market, minNotionalUSD, referencePrice)
		results <- result{entries, err}
	}

	go fetch(fmt.Sprintf("%s/api/v3/depth?symbol=BTCUSDT&limit=%d", c.cfg.SpotBaseURL, bookDepth), exchanges.MarketTypeSpot)
	go fetch(fmt.Sprintf("%s/fapi/v1/depth?symbol=BTCUSDT&limit=%d", c.cfg.FuturesBaseURL, bookDepth), exchanges.MarketTypeFutures)

	var out []exchanges.BookEntry
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, r.entries...)
	}

	return out, nil
}

func (c *client) fetchBook(ctx context.Context, url string, market exchanges.MarketType, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	var res struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
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
				Market:   market,
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
