package collateral

import (
	"reflect"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/fees"
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

func flatPrices(p int64) primitives.Prices {
	price, err := primitives.NewPrice(primitives.NewU(p), primitives.NewU(p))
	if err != nil {
		panic(err)
	}
	return primitives.Prices{IndexTokenPrice: price, LongTokenPrice: price, ShortTokenPrice: price}
}

func TestAddPnlIfPositiveCreditsOutputAndDrainsLiquidity(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	mkt, err := mkt.ApplyDeltaToPoolSide(market.PoolLiquidity, true, primitives.NewU(1_000).ToSigned())
	if err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	p := New(mkt, flatPrices(1), true, true, primitives.ZeroU(), false)

	next, err := p.AddPnlIfPositive(primitives.NewS(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.OutputAmount.Equal(primitives.NewU(100)) {
		t.Errorf("expected output_amount 100, got %s", next.OutputAmount)
	}
	pool, err := next.Market.PoolOf(market.PoolLiquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pool.Long.Equal(primitives.NewU(900)) {
		t.Errorf("expected liquidity pool drained to 900, got %s", pool.Long)
	}
}

func TestAddPnlIfPositiveIsNoopOnNonPositivePnl(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	p := New(mkt, flatPrices(1), true, true, primitives.ZeroU(), false)

	next, err := p.AddPnlIfPositive(primitives.NewS(-5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.OutputAmount.IsZero() {
		t.Errorf("expected no credit for a non-positive pnl, got %s", next.OutputAmount)
	}
}

func TestPayForPnlIfNegativeSolventCreditsPool(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	p := New(mkt, flatPrices(1), true, true, primitives.NewU(500), false)

	next, err := p.PayForPnlIfNegative(primitives.NewS(-200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !next.RemainingCollateralAmount.Equal(primitives.NewU(300)) {
		t.Errorf("expected remaining collateral 300, got %s", next.RemainingCollateralAmount)
	}
	pool, err := next.Market.PoolOf(market.PoolLiquidity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pool.Long.Equal(primitives.NewU(200)) {
		t.Errorf("expected liquidity pool credited 200, got %s", pool.Long)
	}
}

// TestProcessInsolventCloseKeepsRealStateNotZeroValue is a direct regression
// test for a bug where the decrease-position waterfall closure returned a
// bare zero-value Processor on a swallowed error instead of the real,
// partially-updated one: an insolvent close must surface the state Process
// actually accumulated (collateral spent, step recorded), not a wiped-out
// Processor that would throw away every position update that preceded the
// failing step.
func TestProcessInsolventCloseKeepsRealStateNotZeroValue(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	p := New(mkt, flatPrices(1), true, true, primitives.NewU(100), true)

	owed := fees.FundingFees{Amount: primitives.NewU(150)}
	result, err := p.Process(func(pr Processor) (Processor, error) {
		return pr.PayForFundingFees(owed)
	})
	if err != nil {
		t.Fatalf("expected Process to swallow the insufficient-funds error, got %v", err)
	}
	if result.InsolventCloseStep != errs.StepFunding {
		t.Fatalf("expected InsolventCloseStep StepFunding, got %q", result.InsolventCloseStep)
	}

	// A bare zero-value Processor{} would report IsOutputTokenLong == false
	// and an empty Market; the real accumulated state must carry both
	// forward from p.
	if !result.IsOutputTokenLong {
		t.Errorf("expected the real processor's IsOutputTokenLong to survive the swallowed error")
	}
	if !result.IsInsolventCloseAllowed {
		t.Errorf("expected IsInsolventCloseAllowed to survive the swallowed error")
	}
	if !reflect.DeepEqual(result.Market, p.Market) {
		t.Errorf("expected the real market to survive the swallowed error, got a different market")
	}
	if !result.RemainingCollateralAmount.IsZero() {
		t.Errorf("expected the 100 available collateral to have been fully drained toward the cost, got %s", result.RemainingCollateralAmount)
	}
}

// TestProcessPropagatesUnrelatedErrors confirms Process only swallows
// InsufficientFundsToPayForCost errors under IsInsolventCloseAllowed;
// anything else propagates as-is, with a zero-value Processor (there is
// nothing meaningful to recover from a non-waterfall failure).
func TestProcessPropagatesUnrelatedErrors(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	p := New(mkt, flatPrices(1), true, true, primitives.NewU(100), true)

	wantErr := errs.New(errs.KindInvalidPosition, "boom")
	_, err := p.Process(func(pr Processor) (Processor, error) {
		return Processor{}, wantErr
	})
	if err != wantErr {
		t.Fatalf("expected the unrelated error to propagate unchanged, got %v", err)
	}
}

// TestProcessRequiresInsolventCloseOptIn confirms a waterfall failure is not
// swallowed when the processor was not built with IsInsolventCloseAllowed.
func TestProcessRequiresInsolventCloseOptIn(t *testing.T) {
	meta := testMeta()
	mkt := market.New(meta, market.Config{}, market.Flags{})
	p := New(mkt, flatPrices(1), true, true, primitives.NewU(100), false)

	owed := fees.FundingFees{Amount: primitives.NewU(150)}
	_, err := p.Process(func(pr Processor) (Processor, error) {
		return pr.PayForFundingFees(owed)
	})
	if err == nil {
		t.Fatalf("expected an error when insolvent close is not allowed")
	}
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.KindInsufficientFundsToPayForCost {
		t.Errorf("expected KindInsufficientFundsToPayForCost, got %v", err)
	}
}
