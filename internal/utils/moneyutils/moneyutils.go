package moneyutils

import "github.com/shopspring/decimal"

// All monetary values are persisted with 2-digit precision. Rounding is
// half-away-from-zero so repeated allocations cannot drift against each other.

// Round2 rounds a monetary value to 2 decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FloorCents truncates a monetary value down to whole cents. Used by the pull
// plan so that per-account targets never exceed the weighted share.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// PercentOf returns amount * pct / 100, rounded to 2 decimal places.
func PercentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return Round2(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
