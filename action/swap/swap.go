// Package swap implements the core's swap action (C8, spec.md §4.3): an
// exchange of one pool token for the other, priced by the liquidity pool's
// imbalance before and after the trade, fee-adjusted, and settled against
// the swap-impact and claimable-fee pools.
package swap

import (
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/fees"
	"github.com/johnayoung/perpcore/impact"
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/primitives"
)

// Params is the input to Execute.
type Params struct {
	IsTokenInLong bool
	TokenInAmount primitives.U
	Prices        primitives.Prices
}

// Report summarizes a settled swap for the host.
type Report struct {
	TokenInFeeAmount  primitives.U
	TokenOutAmount    primitives.U
	PriceImpactUsd    primitives.S
	PriceImpactAmount primitives.S
}

func absDiffSigned(a, b primitives.S) primitives.U {
	if a.GreaterThan(b) {
		return a.Sub(b).Abs()
	}
	return b.Sub(a).Abs()
}

// Execute prices and settles a swap of tokenInAmount of the side named by
// isTokenInLong into the opposite side, returning the updated market and a
// report of what was charged/credited.
func Execute(mkt market.Market, p Params) (market.Market, Report, error) {
	if p.TokenInAmount.IsZero() {
		return market.Market{}, Report{}, errs.New(errs.KindEmptySwap, "swap: token_in_amount must be positive")
	}
	if err := primitives.Validate(p.Prices); err != nil {
		return market.Market{}, Report{}, err
	}

	tokenInPrice := p.Prices.CollateralPrice(p.IsTokenInLong)
	tokenOutPrice := p.Prices.CollateralPrice(!p.IsTokenInLong)

	liquidity, err := mkt.PoolOf(market.PoolLiquidity)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	longTokenPrice := p.Prices.LongTokenPrice
	shortTokenPrice := p.Prices.ShortTokenPrice

	longPoolUsd, err := liquidity.Long.CheckedMul(longTokenPrice.Pick(true))
	if err != nil {
		return market.Market{}, Report{}, err
	}
	shortPoolUsd, err := liquidity.Short.CheckedMul(shortTokenPrice.Pick(true))
	if err != nil {
		return market.Market{}, Report{}, err
	}
	initialDiff := absDiffSigned(longPoolUsd.ToSigned(), shortPoolUsd.ToSigned())

	tokenInUsd, err := p.TokenInAmount.CheckedMul(tokenInPrice.Pick(true))
	if err != nil {
		return market.Market{}, Report{}, err
	}
	nextLongUsd, nextShortUsd := longPoolUsd, shortPoolUsd
	if p.IsTokenInLong {
		nextLongUsd, err = longPoolUsd.CheckedAdd(tokenInUsd)
	} else {
		nextShortUsd, err = shortPoolUsd.CheckedAdd(tokenInUsd)
	}
	if err != nil {
		return market.Market{}, Report{}, err
	}
	nextDiff := absDiffSigned(nextLongUsd.ToSigned(), nextShortUsd.ToSigned())

	impactCfg := mkt.SwapImpactConfig()
	priceImpactUsd, err := impact.PriceImpactUsd(initialDiff, nextDiff, impactCfg.PositiveFactor, impactCfg.NegativeFactor, impactCfg.Exponent)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	isPositiveImpact := priceImpactUsd.IsPositive()

	// A positive impact pays out in the token-out side (it becomes scarcer
	// relative to the deposit, so the deduct side is the opposite of
	// token-in); a negative impact charges token-in directly.
	deductSideIsTokenIn := !isPositiveImpact
	conversionPrice := tokenInPrice.Pick(false)
	if isPositiveImpact {
		conversionPrice = tokenOutPrice.Pick(false)
	}

	impactPool, err := mkt.PoolOf(market.PoolSwapImpact)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	deductSideIsLong := p.IsTokenInLong == deductSideIsTokenIn
	impactPoolAmount := impactPool.Long
	if !deductSideIsLong {
		impactPoolAmount = impactPool.Short
	}

	priceImpactAmount, cappedDiff, err := impact.AmountWithCapAndDiff(priceImpactUsd, conversionPrice, impactPoolAmount)
	if err != nil {
		return market.Market{}, Report{}, err
	}

	feeCfg := mkt.SwapFeeConfig()
	amountAfterFees, feeForPool, feeForReceiver, err := fees.SwapFees(feeCfg, p.TokenInAmount, isPositiveImpact)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	if !cappedDiff.IsZero() {
		amountAfterFees, err = amountAfterFees.CheckedAdd(cappedDiff)
		if err != nil {
			return market.Market{}, Report{}, err
		}
	}

	var tokenInFinal, poolAmountOut, tokenOutAmount primitives.U
	if isPositiveImpact {
		tokenInFinal = amountAfterFees
		poolAmountOut, err = primitives.MulDiv(tokenInFinal, tokenInPrice.Pick(false), tokenOutPrice.Pick(true), primitives.RoundDown)
		if err != nil {
			return market.Market{}, Report{}, err
		}
		tokenOutAmount, err = poolAmountOut.CheckedAdd(priceImpactAmount.Abs())
		if err != nil {
			return market.Market{}, Report{}, err
		}
	} else {
		signedAfterImpact := amountAfterFees.ToSigned().Add(priceImpactAmount)
		if !signedAfterImpact.IsPositive() {
			return market.Market{}, Report{}, errs.New(errs.KindEmptySwap, "swap: not enough funds to pay price impact")
		}
		tokenInFinal, err = signedAfterImpact.ToUnsigned()
		if err != nil {
			return market.Market{}, Report{}, err
		}
		poolAmountOut, err = primitives.MulDiv(tokenInFinal, tokenInPrice.Pick(false), tokenOutPrice.Pick(true), primitives.RoundDown)
		if err != nil {
			return market.Market{}, Report{}, err
		}
		tokenOutAmount = poolAmountOut
	}

	next := mkt
	next, err = next.ApplyDeltaToPoolSide(market.PoolSwapImpact, deductSideIsLong, priceImpactAmount.Neg())
	if err != nil {
		return market.Market{}, Report{}, err
	}

	inSideCredit, err := tokenInFinal.CheckedAdd(feeForPool)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	next, err = next.ApplyDeltaToPoolSide(market.PoolLiquidity, p.IsTokenInLong, inSideCredit.ToSigned())
	if err != nil {
		return market.Market{}, Report{}, err
	}
	next, err = next.ApplyDeltaToPoolSide(market.PoolLiquidity, !p.IsTokenInLong, poolAmountOut.ToSigned().Neg())
	if err != nil {
		return market.Market{}, Report{}, err
	}
	next, err = next.ApplyDeltaToPoolSide(market.PoolClaimableFee, p.IsTokenInLong, feeForReceiver.ToSigned())
	if err != nil {
		return market.Market{}, Report{}, err
	}

	next, err = next.RecordTransferredIn(p.IsTokenInLong, p.TokenInAmount)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	next, err = next.RecordTransferredOut(!p.IsTokenInLong, tokenOutAmount)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	next, err = next.IncrementTradeCount()
	if err != nil {
		return market.Market{}, Report{}, err
	}

	// Step 7: pool-limit and reserve validation. Staged state is discarded
	// (the zero Market is returned) on any violation; nothing committed.
	if err := next.ValidatePoolAmount(p.IsTokenInLong); err != nil {
		return market.Market{}, Report{}, err
	}
	if err := next.ValidatePoolUsdValue(tokenInPrice, p.IsTokenInLong); err != nil {
		return market.Market{}, Report{}, err
	}
	if err := next.ValidateReserve(tokenOutPrice, !p.IsTokenInLong); err != nil {
		return market.Market{}, Report{}, err
	}
	if err := next.ValidateMaxPnl(p.Prices.IndexTokenPrice.Pick(true), tokenInPrice, market.PnlFactorForDeposit, p.IsTokenInLong); err != nil {
		return market.Market{}, Report{}, err
	}
	if err := next.ValidateMaxPnl(p.Prices.IndexTokenPrice.Pick(true), tokenOutPrice, market.PnlFactorForWithdrawal, !p.IsTokenInLong); err != nil {
		return market.Market{}, Report{}, err
	}

	feeAmount, err := feeForPool.CheckedAdd(feeForReceiver)
	if err != nil {
		return market.Market{}, Report{}, err
	}
	return next, Report{
		TokenInFeeAmount:  feeAmount,
		TokenOutAmount:    tokenOutAmount,
		PriceImpactUsd:    priceImpactUsd,
		PriceImpactAmount: priceImpactAmount,
	}, nil
}
