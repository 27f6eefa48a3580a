package pool

import (
	"testing"

	"github.com/johnayoung/perpcore/primitives"
)

func TestApplyDeltaToLongAmount(t *testing.T) {
	p := Pool{Long: primitives.NewU(100), Short: primitives.NewU(0)}

	p, err := p.ApplyDeltaToLongAmount(primitives.NewS(50))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Long.Equal(primitives.NewU(150)) {
		t.Errorf("expected 150, got %s", p.Long)
	}

	p, err = p.ApplyDeltaToLongAmount(primitives.NewS(-200))
	if err == nil {
		t.Fatalf("expected underflow error, got pool %+v", p)
	}
}

func TestApplyDeltaToShortAmountPureMarketRewrite(t *testing.T) {
	p := Pool{Long: primitives.NewU(10), Short: primitives.NewU(0)}

	p, err := p.ApplyDeltaToShortAmount(primitives.NewS(5), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Long.Equal(primitives.NewU(15)) {
		t.Errorf("expected short-side write redirected to long, got long=%s short=%s", p.Long, p.Short)
	}
	if !p.Short.Equal(primitives.NewU(0)) {
		t.Errorf("expected short side untouched in pure market, got %s", p.Short)
	}
	if !p.ShortAmount(true).IsZero() {
		t.Errorf("expected ShortAmount to read zero in pure market")
	}
}

func TestApplyDeltaToShortAmountImpureMarket(t *testing.T) {
	p := Pool{Long: primitives.NewU(10), Short: primitives.NewU(20)}

	p, err := p.ApplyDeltaToShortAmount(primitives.NewS(5), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Long.Equal(primitives.NewU(10)) {
		t.Errorf("long side should be untouched, got %s", p.Long)
	}
	if !p.Short.Equal(primitives.NewU(25)) {
		t.Errorf("expected short=25, got %s", p.Short)
	}
}

func TestDeltaWithValuesPreservesSign(t *testing.T) {
	longPrice := primitives.NewU(120)
	shortPrice := primitives.NewU(1)

	d, err := DeltaWithValues(primitives.NewS(1_200_000), primitives.NewS(-1_000_000), longPrice, shortPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Long.Equal(primitives.NewS(10_000)) {
		t.Errorf("expected long delta 10000, got %s", d.Long)
	}
	if !d.Short.Equal(primitives.NewS(-1_000_000)) {
		t.Errorf("expected short delta -1000000, got %s", d.Short)
	}
	if !d.Short.IsNegative() {
		t.Errorf("expected negative short delta sign to be preserved")
	}
}

func TestDeltaWithValuesZeroPrice(t *testing.T) {
	_, err := DeltaWithValues(primitives.NewS(1), primitives.NewS(1), primitives.ZeroU(), primitives.NewU(1))
	if err == nil {
		t.Fatalf("expected error for zero unit price")
	}
}
