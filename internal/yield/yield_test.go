package yield

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

// --- Rate validation ---

func TestValidateRate_Bounds(t *testing.T) {
	if err := ValidateRate(0); err != nil {
		t.Errorf("rate 0 should be valid: %v", err)
	}
	if err := ValidateRate(MaxRateBps); err != nil {
		t.Errorf("rate %d should be valid: %v", MaxRateBps, err)
	}
	if err := ValidateRate(MaxRateBps + 1); err != ErrRateTooHigh {
		t.Errorf("expected ErrRateTooHigh, got %v", err)
	}
	if err := ValidateRate(-1); err != ErrRateTooHigh {
		t.Errorf("expected ErrRateTooHigh for negative rate, got %v", err)
	}
}

// --- Accrue ---

func TestAccrue_FullYearTenPercent(t *testing.T) {
	// 10% APY on 1,000,000 units over exactly one year → 100,000.
	got := Accrue(d(1_000_000), 1000, SecondsPerYear)
	if !got.Equal(d(100_000)) {
		t.Errorf("expected 100000, got %s", got)
	}
}

func TestAccrue_ZeroElapsed(t *testing.T) {
	if got := Accrue(d(1_000_000), 1000, 0); !got.IsZero() {
		t.Errorf("expected 0 for zero elapsed, got %s", got)
	}
}

func TestAccrue_NegativeElapsed(t *testing.T) {
	if got := Accrue(d(1_000_000), 1000, -3600); !got.IsZero() {
		t.Errorf("expected 0 for negative elapsed, got %s", got)
	}
}

func TestAccrue_ZeroPrincipal(t *testing.T) {
	if got := Accrue(d(0), 1000, SecondsPerYear); !got.IsZero() {
		t.Errorf("expected 0 for zero principal, got %s", got)
	}
}

func TestAccrue_HalfYear(t *testing.T) {
	got := Accrue(d(1_000_000), 1000, SecondsPerYear/2)
	if !got.Equal(d(50_000)) {
		t.Errorf("expected 50000, got %s", got)
	}
}

func TestAccrue_Truncates(t *testing.T) {
	// annual = 1000 * 1000 / 10000 = 100; one second accrues
	// 100 / 31,536,000 of that → 0.
	got := Accrue(d(1000), 1000, 1)
	if !got.IsZero() {
		t.Errorf("expected 0, got %s", got)
	}
}

func TestAccrue_MonotonicInElapsed(t *testing.T) {
	prev := decimal.Zero
	for _, elapsed := range []int64{0, 1, 3600, 86_400, 2_592_000, SecondsPerYear, 2 * SecondsPerYear} {
		got := Accrue(d(5_000_000), 2500, elapsed)
		if got.LessThan(prev) {
			t.Fatalf("accrual decreased at elapsed=%d: %s < %s", elapsed, got, prev)
		}
		prev = got
	}
}

func TestAccrue_MonotonicInPrincipal(t *testing.T) {
	prev := decimal.Zero
	for _, principal := range []int64{0, 1, 1000, 99_999, 1_000_000, 1_000_000_000} {
		got := Accrue(d(principal), 1000, SecondsPerYear/4)
		if got.LessThan(prev) {
			t.Fatalf("accrual decreased at principal=%d: %s < %s", principal, got, prev)
		}
		prev = got
	}
}

func TestAccrue_MaxRateLargePrincipal(t *testing.T) {
	// 500% APY over a year quintuples the principal, no overflow at u64 scale.
	principal := decimal.RequireFromString("18446744073709551615")
	got := Accrue(principal, MaxRateBps, SecondsPerYear)
	want := principal.Mul(d(5))
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}
