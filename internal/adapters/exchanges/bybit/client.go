package bybit

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/pkg/errors"
)

const (
	baseURL        = "https://api.bybit.com"
	bookDepth      = 200
	requestsPerMin = 120
)

// Config configures the Bybit adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Bybit book source. Bybit v5 serves spot and linear
// futures from the same endpoint via the category parameter; both books are
// fetched concurrently.
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
	return "bybit"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	type result struct {
		entries []exchanges.BookEntry
		err     error
	}

	results := make(chan result, 2)
	fetch := func(category string, market exchanges.MarketType) {
		entries, err := c.fetchBook(ctx, category, market, minNotionalUSD, referencePrice)
		results <- result{entries, err}
	}

	go fetch("spot", exchanges.MarketTypeSpot)
	go fetch("linear", exchanges.MarketTypeFutures)

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

func (c *client) fetchBook(ctx context.Context, category string, market exchanges.MarketType, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/v5/market/orderbook?category=%s&symbol=BTCUSDT&limit=%d", c.cfg.BaseURL, category, bookDepth)

	var res struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			Symbol string     `json:"s"`
			Bids   [][]string `json:"b"`
			Asks   [][]string `json:"a"`
		} `json:"result"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}
	if res.RetCode != 0 {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "bybit retCode %d: %s", res.RetCode, res.RetMsg)
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

	collect(res.Result.Bids, exchanges.SideBid)
	collect(res.Result.Asks, exchanges.SideAsk)

	return entries, nil
}
