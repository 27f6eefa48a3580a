package liquidation

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/position"
	"github.com/johnayoung/perpcore/primitives"
)

func testMeta() market.Meta {
	return market.Meta{
		MarketToken: ethcommon.HexToAddress("0x1"),
		IndexToken:  ethcommon.HexToAddress("0x2"),
		LongToken:   ethcommon.HexToAddress("0x3"),
		ShortToken:  ethcommon.HexToAddress("0x4"),
	}
}

func flatPrices(indexLong, short int64) primitives.Prices {
	il, err := primitives.NewPrice(primitives.NewU(indexLong), primitives.NewU(indexLong))
	if err != nil {
		panic(err)
	}
	s, err := primitives.NewPrice(primitives.NewU(short), primitives.NewU(short))
	if err != nil {
		panic(err)
	}
	return primitives.Prices{IndexTokenPrice: il, LongTokenPrice: il, ShortTokenPrice: s}
}

// pct expresses a whole-number percentage as a Unit()-scaled factor.
func pct(p int64) primitives.U {
	f, err := primitives.MulDiv(primitives.NewU(p), primitives.Unit(), primitives.NewU(100), primitives.RoundDown)
	if err != nil {
		panic(err)
	}
	return f
}

// withOpenInterest records the test position's size (80,000,000,000 USD,
// 650,406,505 tokens, long) in the market's open interest pools, as opening
// that position would have.
func withOpenInterest(mkt market.Market) market.Market {
	next, err := mkt.ApplyDeltaToOpenInterest(true, primitives.NewS(80_000_000_000), primitives.NewS(650_406_505))
	if err != nil {
		panic(err)
	}
	return next
}

func longPosition(meta market.Meta, sizeInUsd, sizeInTokens, collateralAmount int64) position.Position {
	return position.Position{
		Market:          meta.MarketToken,
		CollateralToken: meta.LongToken,
		IsLong:          true,
		SizeInUsd:       primitives.NewU(sizeInUsd),
		SizeInTokens:    primitives.NewU(sizeInTokens),
		CollateralAmount: primitives.NewU(collateralAmount),
	}
}

func TestCheckHealthyPositionIsNotLiquidatable(t *testing.T) {
	meta := testMeta()
	mkt := withOpenInterest(market.New(meta, market.Config{}, market.Flags{}))
	pos := longPosition(meta, 80_000_000_000, 650_406_505, 100_000_000)

	reason, err := Check(pos, mkt, flatPrices(123, 1), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != ReasonNone {
		t.Errorf("expected a healthy position to report ReasonNone, got %q", reason)
	}
}

func TestCheckCrashedPriceIsLiquidatable(t *testing.T) {
	meta := testMeta()
	mkt := withOpenInterest(market.New(meta, market.Config{}, market.Flags{}))
	pos := longPosition(meta, 80_000_000_000, 650_406_505, 100_000_000)

	reason, err := Check(pos, mkt, flatPrices(10, 1), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != ReasonNotPositive {
		t.Errorf("expected ReasonNotPositive after a price crash wipes out collateral, got %q", reason)
	}
}

func TestCheckEmptyPositionIsNeverLiquidatable(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	reason, err := Check(position.Position{}, mkt, flatPrices(10, 1), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != ReasonNone {
		t.Errorf("expected an empty position to never be liquidatable, got %q", reason)
	}
}

func TestCheckBelowMinCollateralFactor(t *testing.T) {
	meta := testMeta()
	cfg := market.Config{
		Position: market.PositionGeneralParams{
			// min_collateral_factor requires 50% of size_in_usd to remain as
			// collateral value.
			MinCollateralFactor: pct(50),
		},
	}
	mkt := withOpenInterest(market.New(meta, cfg, market.Flags{}))
	// Only 13,000 tokens ($1,599,000 at price 123) of collateral against an
	// $80,000,000,000 position is nowhere near the 50% floor.
	pos := longPosition(meta, 80_000_000_000, 650_406_505, 13_000)

	reason, err := Check(pos, mkt, flatPrices(123, 1), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != ReasonMinCollateralForLeverage && reason != ReasonNotPositive {
		t.Errorf("expected a severely underwater leverage check to fail, got %q", reason)
	}
}

func TestMustCheckReturnsNotLiquidatableForHealthyPosition(t *testing.T) {
	meta := testMeta()
	mkt := withOpenInterest(market.New(meta, market.Config{}, market.Flags{}))
	pos := longPosition(meta, 80_000_000_000, 650_406_505, 100_000_000)

	err := MustCheck(pos, mkt, flatPrices(123, 1))
	if !errors.Is(err, errs.ErrNotLiquidatable) {
		t.Errorf("expected ErrNotLiquidatable for a healthy position, got %v", err)
	}
}

func TestMustCheckSucceedsForLiquidatablePosition(t *testing.T) {
	meta := testMeta()
	mkt := withOpenInterest(market.New(meta, market.Config{}, market.Flags{}))
	pos := longPosition(meta, 80_000_000_000, 650_406_505, 100_000_000)

	if err := MustCheck(pos, mkt, flatPrices(10, 1)); err != nil {
		t.Errorf("expected a liquidatable position to pass MustCheck, got %v", err)
	}
}
