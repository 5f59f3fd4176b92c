package exchanges

import "math"

const (
	// MaxPriceDeviation bounds how far a book entry may sit from the live
	// reference price before it is considered stale or erroneous.
	MaxPriceDeviation = 0.20

	// MaxNotionalUSD rejects parsing errors such as misread units. No real
	// resting order exceeds this.
	MaxNotionalUSD = 100_000_000

	// maxCalcError bounds the relative mismatch between price*quantity and
	// the reported notional total.
	maxCalcError = 0.01
)

// PriceWithinTolerance reports whether price deviates from referencePrice by
// at most MaxPriceDeviation. A deviation of exactly 20% is accepted.
func PriceWithinTolerance(price, referencePrice float64) bool {
	if referencePrice <= 0 || price <= 0 {
		return false
	}
	return math.Abs(price-referencePrice)/referencePrice <= MaxPriceDeviation
}

// NotionalWithinBounds reports whether total lies inside the whale notional
// window. The lower bound defines "whale", the upper bound rejects corrupt
// payloads.
func NotionalWithinBounds(total, minNotionalUSD float64) bool {
	return total >= minNotionalUSD && total <= MaxNotionalUSD
}

// CalculationConsistent cross-checks that price*quantity matches the reported
// total within 1%. Catches field-order bugs when parsing heterogeneous
// exchange payloads.
func CalculationConsistent(price, quantity, total float64) bool {
	product := price * quantity
	if product <= 0 {
		return false
	}
	return math.Abs(product-total)/product < maxCalcError
}

// Accept applies all three validators. Rejection is expected high-frequency
// behavior, not a fault: failing entries are silently dropped.
func Accept(e BookEntry, minNotionalUSD, referencePrice float64) bool {
	if !PriceWithinTolerance(e.Price, referencePrice) {
		return false
	}
	if !NotionalWithinBounds(e.Notional, minNotionalUSD) {
		return false
	}
	return CalculationConsistent(e.Price, e.Quantity, e.Notional)
}
