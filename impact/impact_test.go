package impact

import (
	"testing"

	"github.com/johnayoung/perpcore/primitives"
)

func unitFactor(percent int64) primitives.U {
	// percent/100 expressed as a Unit()-scaled factor.
	f, err := primitives.MulDiv(primitives.NewU(percent), primitives.Unit(), primitives.NewU(100), primitives.RoundDown)
	if err != nil {
		panic(err)
	}
	return f
}

func TestPriceImpactUsdRewardsBalanceImprovement(t *testing.T) {
	exponent := primitives.Unit() // exponent 1.0: linear
	positive := unitFactor(1)     // 1%
	negative := unitFactor(2)     // 2%

	// Imbalance shrinks from 1000 to 400: positive impact.
	impact, err := PriceImpactUsd(primitives.NewU(1000), primitives.NewU(400), positive, negative, exponent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !impact.IsPositive() {
		t.Errorf("expected positive impact for shrinking imbalance, got %s", impact)
	}
}

func TestPriceImpactUsdChargesBalanceWorsening(t *testing.T) {
	exponent := primitives.Unit()
	positive := unitFactor(1)
	negative := unitFactor(2)

	// Imbalance grows from 400 to 1000: negative impact.
	impact, err := PriceImpactUsd(primitives.NewU(400), primitives.NewU(1000), positive, negative, exponent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !impact.IsNegative() {
		t.Errorf("expected negative impact for growing imbalance, got %s", impact)
	}
}

func TestAmountWithCapCapsPositiveImpact(t *testing.T) {
	price := primitives.NewU(10)
	impactUsd := primitives.NewS(1000) // 100 tokens worth at price 10
	pool := primitives.NewU(5)

	amount, err := AmountWithCap(impactUsd, price, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(primitives.NewU(5).ToSigned()) {
		t.Errorf("expected credit capped at pool amount 5, got %s", amount)
	}
}

func TestAmountWithCapNeverCapsNegativeImpact(t *testing.T) {
	price := primitives.NewU(10)
	impactUsd := primitives.NewS(-1000)
	pool := primitives.NewU(5)

	amount, err := AmountWithCap(impactUsd, price, pool)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(primitives.NewU(100).ToSigned().Neg()) {
		t.Errorf("expected uncapped charge of -100, got %s", amount)
	}
}

func TestDistributeCapsAtFloorAndPoolAmount(t *testing.T) {
	pool := primitives.NewU(1000)
	floor := primitives.NewU(900)
	rate := unitFactor(50) // 0.5 tokens/sec as a Unit()-scaled factor applied to elapsed seconds

	distributed, err := Distribute(pool, 1000, rate, floor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !distributed.Equal(primitives.NewU(100)) {
		t.Errorf("expected distribution capped at pool-floor headroom (100), got %s", distributed)
	}
}

func TestDistributeNoElapsedTime(t *testing.T) {
	pool := primitives.NewU(1000)
	floor := primitives.NewU(0)
	rate := primitives.Unit()

	distributed, err := Distribute(pool, 0, rate, floor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !distributed.IsZero() {
		t.Errorf("expected zero distribution for zero elapsed time, got %s", distributed)
	}
}
