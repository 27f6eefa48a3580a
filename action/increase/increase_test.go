package increase

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

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

func openConfig(meta market.Meta) market.Config {
	ceiling := primitives.NewU(1_000_000_000_000_000)
	return market.Config{
		Boundaries: market.BoundaryParams{
			MaxPoolAmount: map[ethcommon.Address]primitives.U{
				meta.LongToken:  ceiling,
				meta.ShortToken: ceiling,
			},
			MaxOpenInterest: market.PerSide{Long: ceiling, Short: ceiling},
		},
	}
}

func mustPrice(t *testing.T, min, max int64) primitives.Price {
	t.Helper()
	p, err := primitives.NewPrice(primitives.NewU(min), primitives.NewU(max))
	if err != nil {
		t.Fatalf("NewPrice(%d, %d): %v", min, max, err)
	}
	return p
}

func seedLiquidity(t *testing.T, mkt market.Market, longAmount, shortAmount primitives.U) market.Market {
	t.Helper()
	mkt, err := mkt.ApplyDeltaToPoolSide(market.PoolLiquidity, true, longAmount.ToSigned())
	if err != nil {
		t.Fatalf("seed long liquidity: %v", err)
	}
	mkt, err = mkt.ApplyDeltaToPoolSide(market.PoolLiquidity, false, shortAmount.ToSigned())
	if err != nil {
		t.Fatalf("seed short liquidity: %v", err)
	}
	return mkt
}

// openLongPosition opens a fresh long position at price 123 with no fees or
// position impact configured, matching the S4/S5/S6 decrease scenarios'
// shared setup.
func openLongPosition(t *testing.T, meta market.Meta, mkt market.Market) (market.Market, position.Position) {
	t.Helper()
	prices := primitives.Prices{
		IndexTokenPrice: mustPrice(t, 123, 123),
		LongTokenPrice:  mustPrice(t, 123, 123),
		ShortTokenPrice: mustPrice(t, 1, 1),
	}
	pos := position.Position{
		Market:          meta.MarketToken,
		Owner:           ethcommon.HexToAddress("0x5"),
		CollateralToken: meta.LongToken,
		IsLong:          true,
	}
	next, nextPos, _, err := Execute(mkt, pos, Params{
		CollateralIncrementAmount: primitives.NewU(100_000_000),
		SizeDeltaUsd:              primitives.NewU(80_000_000_000),
		Prices:                    prices,
		Now:                       0,
	})
	if err != nil {
		t.Fatalf("unexpected error opening position: %v", err)
	}
	return next, nextPos
}

func TestExecuteOpensFreshPosition(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, openConfig(meta), market.Flags{})
	mkt = seedLiquidity(t, mkt, primitives.NewU(1_000_000_000), primitives.NewU(1_000_000_000))

	next, pos := openLongPosition(t, meta, mkt)

	if pos.IsEmpty() {
		t.Fatalf("expected a non-empty position after opening")
	}
	if !pos.SizeInUsd.Equal(primitives.NewU(80_000_000_000)) {
		t.Errorf("expected size_in_usd 80,000,000,000, got %s", pos.SizeInUsd)
	}
	// No fees and no position impact are configured, so the full collateral
	// increment lands on the position.
	if !pos.CollateralAmount.Equal(primitives.NewU(100_000_000)) {
		t.Errorf("expected collateral_amount 100,000,000, got %s", pos.CollateralAmount)
	}
	// size_delta_usd / execution_price with zero impact: 80,000,000,000 / 123,
	// rounded up for a long position.
	wantSizeInTokens, err := primitives.MulDiv(primitives.NewU(80_000_000_000), primitives.NewU(1), primitives.NewU(123), primitives.RoundUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pos.SizeInTokens.Equal(wantSizeInTokens) {
		t.Errorf("expected size_in_tokens %s, got %s", wantSizeInTokens, pos.SizeInTokens)
	}

	oi, err := next.OpenInterestUsd(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !oi.Equal(primitives.NewU(80_000_000_000)) {
		t.Errorf("expected long open interest 80,000,000,000, got %s", oi)
	}
}

func TestExecuteRejectsEmptyIncrease(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, openConfig(meta), market.Flags{})
	pos := position.Position{
		Market:          meta.MarketToken,
		CollateralToken: meta.LongToken,
		IsLong:          true,
	}
	prices := primitives.Prices{
		IndexTokenPrice: mustPrice(t, 123, 123),
		LongTokenPrice:  mustPrice(t, 123, 123),
		ShortTokenPrice: mustPrice(t, 1, 1),
	}
	_, _, _, err := Execute(mkt, pos, Params{
		CollateralIncrementAmount: primitives.ZeroU(),
		SizeDeltaUsd:              primitives.ZeroU(),
		Prices:                    prices,
	})
	if err == nil {
		t.Fatalf("expected an error for a no-op increase")
	}
}
