package exchanges

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceWithinTolerance(t *testing.T) {
	tests := []struct {
		name           string
		price          float64
		referencePrice float64
		want           bool
	}{
		{"at reference", 90000, 90000, true},
		{"slightly below", 89000, 90000, true},
		{"exactly 20 percent below", 72000, 90000, true},
		{"exactly 20 percent above", 108000, 90000, true},
		{"just past 20 percent below", 71999, 90000, false},
		{"just past 20 percent above", 108001, 90000, false},
		{"zero price", 0, 90000, false},
		{"negative price", -100, 90000, false},
		{"zero reference", 90000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceWithinTolerance(tt.price, tt.referencePrice))
		})
	}
}

func TestNotionalWithinBounds(t *testing.T) {
	const floor = 450_000

	tests := []struct {
		name  string
		total float64
		want  bool
	}{
		{"below floor", 449_999, false},
		{"exactly at floor", 450_000, true},
		{"mid range", 5_000_000, true},
		{"exactly at ceiling", 100_000_000, true},
		{"above ceiling", 100_000_001, false},
		{"zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NotionalWithinBounds(tt.total, floor))
		})
	}
}

func TestCalculationConsistent(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		quantity float64
		total    float64
		want     bool
	}{
		{"exact product", 90000, 12, 1_080_000, true},
		{"within one percent", 90000, 12, 1_080_000 * 1.009, true},
		{"exactly one percent off", 90000, 12, 1_080_000 * 1.01, false},
		{"way off, swapped fields", 12, 90000, 12, false},
		{"zero product", 0, 12, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculationConsistent(tt.price, tt.quantity, tt.total))
		})
	}
}

func TestAccept(t *testing.T) {
	const (
		minNotional    = 450_000
		referencePrice = 90000
	)

	valid := BookEntry{
		Price:    90000,
		Quantity: 12,
		Side:     SideBid,
		Notional: 1_080_000,
		Market:   MarketTypeSpot,
	}
	assert.True(t, Accept(valid, minNotional, referencePrice))

	tooFar := valid
	tooFar.Price = 60000
	tooFar.Notional = tooFar.Price * tooFar.Quantity
	assert.False(t, Accept(tooFar, minNotional, referencePrice))

	tooSmall := valid
	tooSmall.Quantity = 1
	tooSmall.Notional = tooSmall.Price * tooSmall.Quantity
	assert.False(t, Accept(tooSmall, minNotional, referencePrice))

	inconsistent := valid
	inconsistent.Notional = 2_000_000
	assert.False(t, Accept(inconsistent, minNotional, referencePrice))
}
