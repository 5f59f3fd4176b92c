package kucoin

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/pkg/errors"
)

const (
	baseURL        = "https://api.kucoin.com"
	requestsPerMin = 100
)

// Config configures the KuCoin adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new KuCoin book source.
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
	return "kucoin"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/api/v1/market/orderbook/level2_100?symbol=BTC-USDT", c.cfg.BaseURL)

	var res struct {
		Code string `json:"code"`
		Data struct {
			Time int64      `json:"time"`
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		} `json:"data"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}
	if res.Code != "200000" {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "kucoin code %s", res.Code)
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

	collect(res.Data.Bids, exchanges.SideBid)
	collect(res.Data.Asks, exchanges.SideAsk)

	return entries, nil
}
