package exchanges

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPriceWithinTolerance_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("accepts iff relative deviation at most 20 percent", prop.ForAll(
		func(price, reference float64) bool {
			got := PriceWithinTolerance(price, reference)
			want := math.Abs(price-reference)/reference <= MaxPriceDeviation
			return got == want
		},
		gen.Float64Range(1, 500_000),
		gen.Float64Range(1, 500_000),
	))

	properties.Property("symmetric around the reference", prop.ForAll(
		func(reference, delta float64) bool {
			return PriceWithinTolerance(reference+delta, reference) ==
				PriceWithinTolerance(reference-delta, reference)
		},
		gen.Float64Range(10_000, 200_000),
		gen.Float64Range(0, 1_000),
	))

	properties.TestingRun(t)
}

func TestNotionalWithinBounds_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("window is closed on both ends", prop.ForAll(
		func(total, floor float64) bool {
			got := NotionalWithinBounds(total, floor)
			want := total >= floor && total <= MaxNotionalUSD
			return got == want
		},
		gen.Float64Range(0, 200_000_000),
		gen.Float64Range(100_000, 10_000_000),
	))

	properties.TestingRun(t)
}

func TestCalculationConsistent_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("product of positive inputs is always consistent with itself", prop.ForAll(
		func(price, quantity float64) bool {
			return CalculationConsistent(price, quantity, price*quantity)
		},
		gen.Float64Range(0.01, 500_000),
		gen.Float64Range(0.0001, 10_000),
	))

	properties.Property("one percent or more mismatch is rejected", prop.ForAll(
		func(price, quantity, skew float64) bool {
			total := price * quantity * (1 + skew)
			return !CalculationConsistent(price, quantity, total)
		},
		gen.Float64Range(0.01, 500_000),
		gen.Float64Range(0.0001, 10_000),
		gen.Float64Range(0.011, 0.5),
	))

	properties.TestingRun(t)
}
