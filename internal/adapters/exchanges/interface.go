package exchanges

import (
	"context"
)

// BookSource is the unified contract each exchange adapter must satisfy.
// FetchWhaleOrders issues one or more REST calls against the exchange's
// public order book endpoints and returns only the entries that pass the
// whale-size and sanity validators. A network or parse failure is returned
// as an error and is a single-exchange fault; callers apply circuit
// breaking, not retries.
type BookSource interface {
	Name() string
	FetchWhaleOrders(ctx context.Context, minNotionalUSD, referencePrice float64) ([]BookEntry, error)
}
