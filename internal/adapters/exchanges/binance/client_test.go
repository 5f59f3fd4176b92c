package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whalewatch/internal/adapters/exchanges"
)

const (
	spotBody = `{
		"lastUpdateId": 1027024,
		"bids": [["90000.00", "12.00000000"], ["89500.00", "0.50000000"]],
		"asks": [["91000.00", "8.00000000"]]
	}`
	futuresBody = `{
		"lastUpdateId": 2054321,
		"bids": [["89900.00", "6.00000000"]],
		"asks": [["95000.00", "0.10000000"]]
	}`
)

func TestFetchWhaleOrders(t *testing.T) {
	spot := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/depth", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(spotBody))
	}))
	defer spot.Close()

	futures := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/depth", r.URL.Path)
		w.Write([]byte(futuresBody))
	}))
	defer futures.Close()

	src := New(Config{SpotBaseURL: spot.URL, FuturesBaseURL: futures.URL})
	assert.Equal(t, "binance", src.Name())

	entries, err := src.FetchWhaleOrders(context.Background(), 450_000, 90000)
	require.NoError(t, err)

	// Whale-sized levels: spot bid 90000x12, spot ask 91000x8 and futures
	// bid 89900x6. Spot 89500x0.5 and futures 95000x0.1 fall below the
	// notional floor.
	require.Len(t, entries, 3)

	type key struct {
		market exchanges.MarketType
		side   exchanges.Side
	}
	byKey := map[key]exchanges.BookEntry{}
	for _, e := range entries {
		byKey[key{e.Market, e.Side}] = e
	}

	spotBid := byKey[key{exchanges.MarketTypeSpot, exchanges.SideBid}]
	assert.Equal(t, 90000.0, spotBid.Price)
	assert.Equal(t, 12.0, spotBid.Quantity)
	assert.Equal(t, 1_080_000.0, spotBid.Notional)

	spotAsk := byKey[key{exchanges.MarketTypeSpot, exchanges.SideAsk}]
	assert.Equal(t, 91000.0, spotAsk.Price)
	assert.Equal(t, 8.0, spotAsk.Quantity)
	assert.Equal(t, 728_000.0, spotAsk.Notional)

	futBid := byKey[key{exchanges.MarketTypeFutures, exchanges.SideBid}]
	assert.Equal(t, 89900.0, futBid.Price)
	assert.Equal(t, 6.0, futBid.Quantity)
}

func TestFetchWhaleOrders_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := New(Config{SpotBaseURL: srv.URL, FuturesBaseURL: srv.URL})

	_, err := src.FetchWhaleOrders(context.Background(), 450_000, 90000)
	require.Error(t, err)
}
