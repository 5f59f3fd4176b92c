package kraken

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/pkg/errors"
)

const (
	baseURL        = "https://api.kraken.com"
	bookDepth      = 500
	requestsPerMin = 60
)

// Config configures the Kraken adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Kraken book source.
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
	return "kraken"
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/0/public/Depth?pair=XBTUSD&count=%d", c.cfg.BaseURL, bookDepth)

	// Kraken levels are [price string, volume string, timestamp number],
	// keyed by its internal pair name.
	var res struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Bids [][]interface{} `json:"bids"`
			Asks [][]interface{} `json:"asks"`
		} `json:"result"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}
	if len(res.Error) > 0 {
		return nil, errors.Wrapf(errors.ErrExchangeUnavailable, "kraken: %v", res.Error)
	}

	var entries []exchanges.BookEntry
	for _, book := range res.Result {
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
		collect(book.Bids, exchanges.SideBid)
		collect(book.Asks, exchanges.SideAsk)
	}

	return entries, nil
}
