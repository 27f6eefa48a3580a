package borrowing

import (
	"testing"

	"github.com/johnayoung/perpcore/primitives"
)

func pct(p int64) primitives.U {
	f, err := primitives.MulDiv(primitives.NewU(p), primitives.Unit(), primitives.NewU(100), primitives.RoundDown)
	if err != nil {
		panic(err)
	}
	return f
}

func TestUsageFactor(t *testing.T) {
	usage, err := UsageFactor(primitives.NewU(50), primitives.NewU(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usage.Equal(pct(25)) {
		t.Errorf("expected usage 25%%, got %s", usage)
	}
}

func TestUsageFactorZeroPool(t *testing.T) {
	usage, err := UsageFactor(primitives.NewU(50), primitives.ZeroU())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usage.IsZero() {
		t.Errorf("expected zero usage on empty pool, got %s", usage)
	}
}

func TestRatePerSecondBelowOptimal(t *testing.T) {
	rate, err := RatePerSecond(pct(50), pct(80), pct(10), pct(90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, _ := primitives.ApplyFactor(pct(50), pct(10), primitives.RoundDown)
	if !rate.Equal(want) {
		t.Errorf("expected linear rate %s, got %s", want, rate)
	}
}

func TestRatePerSecondAboveOptimalIsSteeper(t *testing.T) {
	below, err := RatePerSecond(pct(80), pct(80), pct(10), pct(90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	above, err := RatePerSecond(pct(90), pct(80), pct(10), pct(90))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !above.GreaterThan(below) {
		t.Errorf("expected rate above kink (%s) to exceed rate at kink (%s)", above, below)
	}
}

func TestNextCumulativeFactorMonotonic(t *testing.T) {
	start := primitives.NewU(1000)
	next, err := NextCumulativeFactor(start, pct(1), 3600)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.GreaterThan(start) {
		t.Errorf("expected cumulative factor to increase, got %s from %s", next, start)
	}
}

func TestNextCumulativeFactorNoElapsedTime(t *testing.T) {
	start := primitives.NewU(1000)
	next, err := NextCumulativeFactor(start, pct(1), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.Equal(start) {
		t.Errorf("expected unchanged cumulative factor with zero elapsed time, got %s", next)
	}
}

func TestFeeSinceSnapshot(t *testing.T) {
	fee, err := FeeSinceSnapshot(primitives.NewU(10_000), primitives.NewU(2000), primitives.NewU(1000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fee.IsZero() {
		t.Errorf("expected nonzero fee for nonzero factor delta")
	}
}
