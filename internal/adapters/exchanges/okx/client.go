package okx

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/pkg/errors"
)

const (
	baseURL        = "https://www.okx.com"
	bookDepth      = 400
	requestsPerMin = 60
)

// Config configures the OKX adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new OKX book source. Spot (BTC-USDT) and perpetual swap
// (BTC-USDT-SWAP) books are fetched concurrently from the same endpoint.
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
	return "okx"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	type result struct {
		entries []exchanges.BookEntry
		err     error
	}

	results := make(chan result, 2)
	fetch := func(instID string, market exchanges.MarketType) {
		entries, err := c.fetchBook(ctx, instID, market, minNotionalUSD, referencePrice)
		results <- result{entries, err}
	}

	go fetch("BTC-USDT", exchanges.MarketTypeSpot)
	go fetch("BTC-USDT-SWAP", exchanges.MarketTypeFutures)

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

func (c *client) fetchBook(ctx context.Context, instID string, market exchanges.MarketType, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/api/v5/market/books?instId=%s&sz=%d", c.cfg.BaseURL, instID, bookDepth)

	// OKX levels are 4-tuples: [price, size, liquidated orders, order count].
	var res struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		} `json:"data"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}
	if res.Code != "0" {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "okx code %s: %s", res.Code, res.Msg)
	}
	if len(res.Data) == 0 {
		return nil, errors.Wrap(errors.ErrBadPayload, "okx: empty data")
	}

	book := res.Data[0]

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

	collect(book.Bids, exchanges.SideBid)
	collect(book.Asks, exchanges.SideAsk)

	return entries, nil
}
