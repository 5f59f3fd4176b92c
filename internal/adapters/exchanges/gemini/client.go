package gemini

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"whalewatch/internal/adapters/exchanges"
)

const (
	baseURL        = "https://api.gemini.com"
	bookDepth      = 500
	requestsPerMin = 120
)

// Config configures the Gemini adapter.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a new Gemini book source.
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
	return "gemini"
}

type level struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

func (c *client) FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]exchanges.BookEntry, error) {
	url := fmt.Sprintf("%s/v1/book/btcusd?limit_bids=%d&limit_asks=%d", c.cfg.BaseURL, bookDepth, bookDepth)

	// Gemini is the odd one out: levels are nested objects, not tuples.
	var res struct {
		Bids []level `json:"bids"`
		Asks []level `json:"asks"`
	}

	if err := exchanges.GetJSON(ctx, c.cfg.HTTPClient, c.limiter, url, &res); err != nil {
		return nil, err
	}

	var entries []exchanges.BookEntry
	collect := func(levels []level, side exchanges.Side) {
		for _, lvl := range levels {
			price := exchanges.ParseFloat(lvl.Price)
			qty := exchanges.ParseFloat(lvl.Amount)
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
