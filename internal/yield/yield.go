// Package yield implements continuous time-proportional yield accrual for
// strategies. A strategy advertises an annual rate in basis points; a
// position accrues that rate pro-rata per elapsed second against its
// deposited principal.
//
// The two-step order of operations is load-bearing and must not be
// rearranged:
//
//	annual  = trunc(principal * rateBps / 10000)
//	accrued = trunc(annual * elapsedSeconds / secondsPerYear)
//
// Multiplying before dividing, over exact intermediates, avoids precision
// loss; both divisions truncate.
//
// All monetary values use shopspring/decimal — never float64 for money.
package yield

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/yieldos/yield-engine/internal/fixedpoint"
)

// SecondsPerYear is the accrual denominator: 365 days, no leap handling.
const SecondsPerYear = 365 * 24 * 60 * 60

// MaxRateBps caps strategy rates at 500% APY.
const MaxRateBps = 50_000

// ErrRateTooHigh is returned when a strategy rate exceeds MaxRateBps.
var ErrRateTooHigh = errors.New("yield: annual rate exceeds 50000 basis points")

var secondsPerYear = decimal.NewFromInt(SecondsPerYear)

// ValidateRate checks a strategy's annual rate at creation time.
func ValidateRate(rateBps int64) error {
	if rateBps < 0 || rateBps > MaxRateBps {
		return ErrRateTooHigh
	}
	return nil
}

// Accrue returns the yield earned by principal at rateBps over
// elapsedSeconds. Non-positive elapsed time accrues nothing; so does a zero
// principal or rate. The result is monotonic non-decreasing in both
// principal and elapsed time.
func Accrue(principal decimal.Decimal, rateBps int64, elapsedSeconds int64) decimal.Decimal {
	if elapsedSeconds <= 0 || !principal.IsPositive() || rateBps <= 0 {
		return decimal.Zero
	}

	annual := fixedpoint.BpsOf(principal, rateBps)
	return fixedpoint.MulDiv(annual, decimal.NewFromInt(elapsedSeconds), secondsPerYear)
}
