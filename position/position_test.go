package position

import (
	"testing"

	"github.com/johnayoung/perpcore/primitives"
)

func TestValidateZeroTogether(t *testing.T) {
	p := Position{}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error for fully zero position: %v", err)
	}

	p.SizeInUsd = primitives.NewU(100)
	if err := p.Validate(); err == nil {
		t.Fatalf("expected error: size_in_usd set without size_in_tokens")
	}

	p.SizeInTokens = primitives.NewU(1)
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error once both sides set: %v", err)
	}
}

func TestClaimableFundingAmountPerSizeRoundTrip(t *testing.T) {
	p := Position{}
	p = p.WithClaimableFundingAmountPerSize(true, primitives.NewU(7))
	p = p.WithClaimableFundingAmountPerSize(false, primitives.NewU(3))

	if !p.ClaimableFundingAmountPerSizeFor(true).Equal(primitives.NewU(7)) {
		t.Errorf("expected long side 7, got %s", p.ClaimableFundingAmountPerSizeFor(true))
	}
	if !p.ClaimableFundingAmountPerSizeFor(false).Equal(primitives.NewU(3)) {
		t.Errorf("expected short side 3, got %s", p.ClaimableFundingAmountPerSizeFor(false))
	}
}

func TestLeverage(t *testing.T) {
	p := Position{SizeInUsd: primitives.NewU(1000)}

	lev, err := p.Leverage(primitives.NewU(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want, err := primitives.NewU(10).CheckedMul(primitives.Unit())
	if err != nil {
		t.Fatalf("unexpected error building expectation: %v", err)
	}
	if !lev.Equal(want) {
		t.Errorf("expected leverage 10x (%s), got %s", want, lev)
	}

	if _, err := p.Leverage(primitives.ZeroU()); err == nil {
		t.Fatalf("expected error for zero collateral value")
	}
}
