package whaleorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WhaleOrder is a persisted large resting order observed on an exchange book.
type WhaleOrder struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Exchange  string    `db:"exchange" json:"exchange"`
	Direction Direction `db:"direction" json:"direction"`
	Market    Market    `db:"market" json:"market"`

	// Size in BTC, price in USD. Both strictly positive.
	Size  decimal.Decimal `db:"size" json:"size"`
	Price decimal.Decimal `db:"price" json:"price"`

	Status Status `db:"status" json:"status"`

	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	FilledAt  *time.Time       `db:"filled_at" json:"filled_at,omitempty"`
	FillPrice *decimal.Decimal `db:"fill_price" json:"fill_price,omitempty"`
}

// New builds an active whale order from normalized book data.
func New(exchange string, direction Direction, market Market, price, size float64) *WhaleOrder {
	return &WhaleOrder{
		ID:        uuid.New(),
		Exchange:  exchange,
		Direction: direction,
		Market:    market,
		Size:      decimal.NewFromFloat(size),
		Price:     decimal.NewFromFloat(price),
		Status:    StatusActive,
		CreatedAt: time.Now().UTC(),
	}
}

// Valid checks entity invariants: positive size and price, known enums,
// fill fields present iff filled.
func (o *WhaleOrder) Valid() bool {
	if !o.Size.IsPositive() || !o.Price.IsPositive() {
		return false
	}
	if !o.Direction.Valid() || !o.Market.Valid() || !o.Status.Valid() {
		return false
	}
	if o.Status == StatusFilled {
		return o.FilledAt != nil && o.FillPrice != nil
	}
	return o.FilledAt == nil && o.FillPrice == nil
}

// PriceF returns the limit price as float64 for tolerance math.
func (o *WhaleOrder) PriceF() float64 {
	return o.Price.InexactFloat64()
}

// SizeF returns the size as float64 for tolerance math.
func (o *WhaleOrder) SizeF() float64 {
	return o.Size.InexactFloat64()
}

// NotionalUSD returns price x size.
func (o *WhaleOrder) NotionalUSD() float64 {
	return o.Price.Mul(o.Size).InexactFloat64()
}

// Direction maps book side to position direction: bid entries are long
// interest, ask entries short.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Valid checks if direction is valid
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// String returns string representation
func (d Direction) String() string {
	return string(d)
}

// Market defines which market segment the order was seen on.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

// Valid checks if market is valid
func (m Market) Valid() bool {
	return m == MarketSpot || m == MarketFutures
}

// String returns string representation
func (m Market) String() string {
	return string(m)
}

// Status defines the whale order lifecycle state. Transitions are
// one-directional: active orders become filled or deleted, never the reverse.
type Status string

const (
	StatusActive  Status = "active"
	StatusFilled  Status = "filled"
	StatusDeleted Status = "deleted"
)

// Valid checks if status is valid
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFilled, StatusDeleted:
		return true
	}
	return false
}

// String returns string representation
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is terminal
func (s Status) IsTerminal() bool {
	return s == StatusFilled || s == StatusDeleted
}
