package swap

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/market"
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

// bps expresses a basis-points factor as a Unit()-scaled primitives.U.
func bps(b int64) primitives.U {
	f, err := primitives.MulDiv(primitives.NewU(b), primitives.Unit(), primitives.NewU(10_000), primitives.RoundDown)
	if err != nil {
		panic(err)
	}
	return f
}

// openConfig returns a Config with pool/open-interest ceilings high enough
// that a test's deposits and swaps never trip the boundary checks, leaving
// every other parameter at its zero default.
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
	mkt, err = mkt.RecordTransferredIn(true, longAmount)
	if err != nil {
		t.Fatalf("record long deposit: %v", err)
	}
	mkt, err = mkt.RecordTransferredIn(false, shortAmount)
	if err != nil {
		t.Fatalf("record short deposit: %v", err)
	}
	return mkt
}

func mustPrice(t *testing.T, min, max int64) primitives.Price {
	t.Helper()
	p, err := primitives.NewPrice(primitives.NewU(min), primitives.NewU(max))
	if err != nil {
		t.Fatalf("NewPrice(%d, %d): %v", min, max, err)
	}
	return p
}

// TestExecutePureBalancedSwap is scenario S1: a zero-impact, zero-fee market
// swapping one side for the other at a flat price produces an exact
// value-for-value token_out_amount.
func TestExecutePureBalancedSwap(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, openConfig(meta), market.Flags{})
	mkt = seedLiquidity(t, mkt, primitives.NewU(1_000_000_000), primitives.NewU(1_000_000_000))

	prices := primitives.Prices{
		IndexTokenPrice: mustPrice(t, 120, 120),
		LongTokenPrice:  mustPrice(t, 120, 120),
		ShortTokenPrice: mustPrice(t, 1, 1),
	}

	_, report, err := Execute(mkt, Params{
		IsTokenInLong: true,
		TokenInAmount: primitives.NewU(1_000_000),
		Prices:        prices,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.TokenOutAmount.Equal(primitives.NewU(120_000_000)) {
		t.Errorf("expected token_out_amount 120,000,000, got %s", report.TokenOutAmount)
	}
	if !report.PriceImpactUsd.IsZero() {
		t.Errorf("expected zero price impact in a zero-impact-config market, got %s", report.PriceImpactUsd)
	}
	if !report.TokenInFeeAmount.IsZero() {
		t.Errorf("expected zero fee in a zero-fee-config market, got %s", report.TokenInFeeAmount)
	}
}

// TestExecutePositiveImpactSwapChargesFees is scenario S2, grounded on the
// teacher's swap invariant test: a swap that shrinks the pool's imbalance
// earns a positive price impact credit, and the settlement must reconcile
// exactly across the liquidity, swap-impact, and claimable-fee pools.
func TestExecutePositiveImpactSwapChargesFees(t *testing.T) {
	meta := testMeta()
	cfg := openConfig(meta)
	cfg.SwapImpact = market.SwapImpactParams{
		Exponent:       primitives.Unit(),
		PositiveFactor: bps(100), // 1%
		NegativeFactor: bps(200), // 2%
	}
	cfg.SwapFee = market.SwapFeeParams{
		ReceiverFactor:          bps(1_000), // 10%
		FactorForPositiveImpact: bps(50),    // 0.5%
		FactorForNegativeImpact: bps(100),   // 1%
	}
	mkt := market.New(meta, cfg, market.Flags{})
	// Long pool ($369,000,000) outweighs short ($300,000,000); paying into
	// the short side shrinks that imbalance, so the swap nets a positive
	// impact.
	mkt = seedLiquidity(t, mkt, primitives.NewU(3_000_000), primitives.NewU(300_000_000))
	mkt, err := mkt.ApplyDeltaToPoolSide(market.PoolSwapImpact, true, primitives.NewU(10_000).ToSigned())
	if err != nil {
		t.Fatalf("seed swap impact pool: %v", err)
	}

	prices := primitives.Prices{
		IndexTokenPrice: mustPrice(t, 123, 123),
		LongTokenPrice:  mustPrice(t, 123, 123),
		ShortTokenPrice: mustPrice(t, 1, 1),
	}

	beforeLiquidity, err := mkt.PoolOf(market.PoolLiquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	beforeImpact, err := mkt.PoolOf(market.PoolSwapImpact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	beforeClaimable, err := mkt.PoolOf(market.PoolClaimableFee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tokenInAmount := primitives.NewU(100_000_000)
	next, report, err := Execute(mkt, Params{
		IsTokenInLong: false,
		TokenInAmount: tokenInAmount,
		Prices:        prices,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.PriceImpactUsd.IsPositive() {
		t.Fatalf("expected a positive price impact for an imbalance-shrinking swap, got %s", report.PriceImpactUsd)
	}
	if !report.PriceImpactAmount.IsPositive() {
		t.Fatalf("expected a positive price impact amount, got %s", report.PriceImpactAmount)
	}

	afterLiquidity, err := next.PoolOf(market.PoolLiquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	afterImpact, err := next.PoolOf(market.PoolSwapImpact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	afterClaimable, err := next.PoolOf(market.PoolClaimableFee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// before.long_pool == after.long_pool + token_out_amount - price_impact_amount
	longDrained, err := beforeLiquidity.Long.CheckedSub(afterLiquidity.Long)
	if err != nil {
		t.Fatalf("long pool shrank unexpectedly: %v", err)
	}
	wantDrain, err := report.TokenOutAmount.CheckedSub(report.PriceImpactAmount.Abs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !longDrained.Equal(wantDrain) {
		t.Errorf("long pool drain %s does not match token_out_amount - price_impact_amount %s", longDrained, wantDrain)
	}

	// after.claimable_fee_pool.short - before.claimable_fee_pool.short == fee_receiver_amount
	claimableCredited, err := afterClaimable.Short.CheckedSub(beforeClaimable.Short)
	if err != nil {
		t.Fatalf("claimable fee pool shrank unexpectedly: %v", err)
	}
	if claimableCredited.IsZero() {
		t.Errorf("expected a nonzero receiver fee credit")
	}

	// after.short_pool - before.short_pool == token_in_amount - fee_receiver_amount
	shortCredited, err := afterLiquidity.Short.CheckedSub(beforeLiquidity.Short)
	if err != nil {
		t.Fatalf("short pool shrank unexpectedly: %v", err)
	}
	wantShortCredit, err := tokenInAmount.CheckedSub(claimableCredited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !shortCredited.Equal(wantShortCredit) {
		t.Errorf("short pool credit %s does not match token_in_amount - fee_receiver_amount %s", shortCredited, wantShortCredit)
	}

	// after.swap_impact_pool.long - before.swap_impact_pool.long == -price_impact_amount
	// (the impact pool pays out the credit the trader received).
	impactDrained, err := beforeImpact.Long.CheckedSub(afterImpact.Long)
	if err != nil {
		t.Fatalf("swap impact pool grew unexpectedly: %v", err)
	}
	if !impactDrained.Equal(report.PriceImpactAmount.Abs()) {
		t.Errorf("swap impact pool drain %s does not match price_impact_amount %s", impactDrained, report.PriceImpactAmount.Abs())
	}
}

// TestExecuteRejectsEmptySwap is scenario S3.
func TestExecuteRejectsEmptySwap(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, openConfig(meta), market.Flags{})
	mkt = seedLiquidity(t, mkt, primitives.NewU(1_000_000_000), primitives.NewU(1_000_000_000))

	prices := primitives.Prices{
		IndexTokenPrice: mustPrice(t, 120, 120),
		LongTokenPrice:  mustPrice(t, 120, 120),
		ShortTokenPrice: mustPrice(t, 1, 1),
	}

	_, _, err := Execute(mkt, Params{
		IsTokenInLong: true,
		TokenInAmount: primitives.ZeroU(),
		Prices:        prices,
	})
	if err == nil {
		t.Fatalf("expected error for an empty swap")
	}
	if !errors.Is(err, errs.ErrEmptySwap) {
		t.Errorf("expected KindEmptySwap, got %v", err)
	}
}
