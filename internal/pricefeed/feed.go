package pricefeed

import (
	"context"
	"math"
	"net/http"
	"sync"
	"time"

	"whalewatch/internal/adapters/exchanges"
	"whalewatch/internal/adapters/redis"
	"whalewatch/internal/workers"
	"whalewatch/pkg/errors"
	"whalewatch/pkg/logger"
)

const (
	tickerURL = "https://api.binance.com/api/v3/ticker/price?symbol=BTCUSDT"

	// maxDriftPerRefresh bounds how far the reported price may move per
	// refresh while the upstream ticker is down. Keeps the validator's
	// reference price from jumping on a stale cache read.
	maxDriftPerRefresh = 0.0005

	redisKey = "whalewatch:btc_price"
	redisTTL = 5 * time.Minute
)

// Sink receives every successfully refreshed price.
type Sink interface {
	PriceUpdated(ctx context.Context, price float64)
}

// Feed serves the BTC reference price used by validators, fill detection and
// zone tagging. Current never returns zero: before the first successful
// refresh it reports the configured fallback, afterwards the last known good
// price with bounded drift.
type Feed struct {
	hc    *http.Client
	url   string
	cache *redis.Client // optional
	sink  Sink          // optional

	mu    sync.RWMutex
	price float64

	log *logger.Logger
}

// New creates a price feed seeded with the fallback price. cache and sink may
// be nil.
func New(fallbackPrice float64, cache *redis.Client, sink Sink) *Feed {
	return &Feed{
		hc:    exchanges.NewHTTPClient(),
		url:   tickerURL,
		cache: cache,
		sink:  sink,
		price: fallbackPrice,
		log:   logger.Get().With("component", "pricefeed"),
	}
}

// Current returns the reference price in USD. Always positive.
func (f *Feed) Current() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.price
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Refresh fetches the live ticker and updates the reference price. On fetch
// failure the previous price is kept, clamped against the cached value so a
// long outage converges toward the last externally observed price.
func (f *Feed) Refresh(ctx context.Context) error {
	var resp tickerResponse
	err := exchanges.GetJSON(ctx, f.hc, nil, f.url, &resp)
	if err == nil {
		p := exchanges.ParseFloat(resp.Price)
		if p > 0 {
			f.set(ctx, p)
			return nil
		}
		err = errors.Wrapf(errors.ErrBadPayload, "ticker price %q", resp.Price)
	}

	f.log.Warnw("Ticker refresh failed, holding last known price", "error", err)
	f.recoverFromCache(ctx)
	return err
}

func (f *Feed) set(ctx context.Context, p float64) {
	f.mu.Lock()
	f.price = p
	f.mu.Unlock()

	if f.cache != nil {
		if err := f.cache.Set(ctx, redisKey, p, redisTTL); err != nil {
			f.log.Debugw("Price cache write failed", "error", err)
		}
	}
	if f.sink != nil {
		f.sink.PriceUpdated(ctx, p)
	}
}

// recoverFromCache nudges the held price toward the cached one, at most
// maxDriftPerRefresh per call.
func (f *Feed) recoverFromCache(ctx context.Context) {
	if f.cache == nil {
		return
	}

	var cached float64
	if err := f.cache.Get(ctx, redisKey, &cached); err != nil || cached <= 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	maxStep := f.price * maxDriftPerRefresh
	delta := cached - f.price
	if math.Abs(delta) > maxStep {
		delta = math.Copysign(maxStep, delta)
	}
	f.price += delta
}

// Worker refreshes the price feed on an interval.
type Worker struct {
	*workers.BaseWorker
	feed *Feed
}

// NewWorker creates the price refresh worker.
func NewWorker(f *Feed, interval time.Duration) *Worker {
	return &Worker{
		BaseWorker: workers.NewBaseWorker("pricefeed", interval, true),
		feed:       f,
	}
}

// Run refreshes the price once. A failed refresh is recorded but not
// propagated; the feed keeps serving the last known price.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.feed.Refresh(ctx); err != nil {
		w.RecordError(err)
		return nil
	}
	w.RecordRun()
	return nil
}
