package stock

import "github.com/shopspring/decimal"

var half = decimal.New(5, -1)

// RoundHalfUp quantizes d to places fractional digits, ties rounding away from zero.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	rounded := d.Abs().Shift(places).Add(half).Floor().Shift(-places)
	if d.IsNegative() {
		return rounded.Neg()
	}
	return rounded
}

// RoundPrice quantizes a price to PricePlaces digits
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(d, PricePlaces)
}

// RoundVolume rounds a mean volume to the nearest integer
func RoundVolume(d decimal.Decimal) int64 {
	return RoundHalfUp(d, 0).IntPart()
}
