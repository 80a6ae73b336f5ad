// Package fixedpoint provides the shared scaling and basis-point arithmetic
// used by every accounting component: 6-decimal fixed-point prices
// (1,000,000 = 1.0) and truncating multiply-then-divide over arbitrary
// precision intermediates.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts and prices are integer base units carried in Decimal; division
// always truncates toward zero. Truncation, not rounding, is the defined
// behavior everywhere: the bias is against the paying party and in favor of
// protocol solvency.
package fixedpoint

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeResult is returned by CheckedSub when the subtraction
	// would drive a balance or aggregate below zero.
	ErrNegativeResult = errors.New("fixedpoint: subtraction result is negative")

	// PriceOne is the fixed-point representation of 1.0 (6 implied decimals).
	PriceOne = decimal.NewFromInt(1_000_000)

	// BpsDenominator converts basis points to a fraction (10000 bps = 100%).
	BpsDenominator = decimal.NewFromInt(10_000)
)

// MulDiv computes trunc(a * b / div). The product is exact (arbitrary
// precision), so there is no intermediate overflow before the narrowing
// truncation. div must be positive; callers pass constants or validated
// record fields.
func MulDiv(a, b, div decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(div, 0)
	return q
}

// ScaleValue de-scales a quantity-times-price product into underlying base
// units: trunc(quantity * price / 1_000_000).
func ScaleValue(quantity, price decimal.Decimal) decimal.Decimal {
	return MulDiv(quantity, price, PriceOne)
}

// BpsOf returns trunc(amount * bps / 10000), the fee or rate portion of an
// amount expressed in basis points.
func BpsOf(amount decimal.Decimal, bps int64) decimal.Decimal {
	return MulDiv(amount, decimal.NewFromInt(bps), BpsDenominator)
}

// CheckedSub returns a - b, or ErrNegativeResult if the difference is
// negative. Underflow is a hard abort for the calling operation, never a
// wrap-around.
func CheckedSub(a, b decimal.Decimal) (decimal.Decimal, error) {
	diff := a.Sub(b)
	if diff.IsNegative() {
		return decimal.Decimal{}, ErrNegativeResult
	}
	return diff, nil
}

// IsBaseUnits reports whether d is a whole, non-negative number of base
// units. Request amounts that fail this check are rejected before any side
// effect.
func IsBaseUnits(d decimal.Decimal) bool {
	return d.IsInteger() && !d.IsNegative()
}
