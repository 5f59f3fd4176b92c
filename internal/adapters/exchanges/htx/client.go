package htx

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/pkg/errors"
)

const (
	baseURL        = "https://api.huobi.pro"
	requestsPerMin = 100
)

// Config configures the HTX (Huobi) adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new HTX book source.
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
	return "htx"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/market/depth?symbol=btcusdt&type=step0&depth=20", c.cfg.BaseURL)

	// HTX levels are bare numeric pairs [price, amount].
	var res struct {
		Status string `json:"status"`
		ErrMsg string `json:"err-msg"`
		Tick   struct {
			Bids [][]float64 `json:"bids"`
			Asks [][]float64 `json:"asks"`
		} `json:"tick"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}
	if res.Status != "ok" {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "htx status %s: %s", res.Status, res.ErrMsg)
	}

	var entries []exchanges.BookEntry
	collect := func(levels [][]float64, side exchanges.Side) {
		for _, lvl := range levels {
			if len(lvl) < 2 {
				continue
			}
			price := lvl[0]
			qty := lvl[1]
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

	collect(res.Tick.Bids, exchanges.SideBid)
	collect(res.Tick.Asks, exchanges.SideAsk)

	return entries, nil
}
