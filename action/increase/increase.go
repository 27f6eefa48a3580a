// Package increase implements the core's increase-position action (C9,
// spec.md §4.8): collateral deposit, size growth priced at an impact-
// adjusted execution price, and settlement of the fees/borrowing/funding
// owed on the position's pre-existing size, all staged against a copy of
// the market and committed only if every post-state invariant holds.
package increase

import (
	"github.com/johnayoung/perpcore/borrowing"
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/fees"
	"github.com/johnayoung/perpcore/funding"
	"github.com/johnayoung/perpcore/impact"
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/position"
	"github.com/johnayoung/perpcore/primitives"
)

// Params is the input to Execute.
type Params struct {
	CollateralIncrementAmount primitives.U
	SizeDeltaUsd              primitives.U
	// AcceptablePrice is an optional limit-style order check; nil means
	// unconditional execution.
	AcceptablePrice *primitives.U
	Prices          primitives.Prices
	Now             int64
}

// Report summarizes a settled increase for the host.
type Report struct {
	Fees                      fees.PositionFees
	ExecutionPrice            primitives.U
	PriceImpactUsd            primitives.S
	SizeDeltaInTokens         primitives.U
	ClaimableLongTokenAmount  primitives.U
	ClaimableShortTokenAmount primitives.U
}

// Execute settles an increase of pos against mkt, returning the updated
// market, the updated position, and a report of what was charged. On any
// error neither mkt nor pos reflect the attempted change.
func Execute(mkt market.Market, pos position.Position, p Params) (market.Market, position.Position, Report, error) {
	if err := primitives.Validate(p.Prices); err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if p.CollateralIncrementAmount.IsZero() && p.SizeDeltaUsd.IsZero() {
		return market.Market{}, position.Position{}, Report{}, errs.New(errs.KindEmptyDeposit, "increase_position: both collateral_increment_amount and size_delta_usd are zero")
	}

	next := mkt
	var err error
	next, err = market.UpdatePositionImpactDistribution(next, p.Now)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = market.UpdateBorrowing(next, p.Prices, p.Now)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = market.UpdateFunding(next, p.Now)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	isLong := pos.IsLong
	isCollateralLong := pos.IsCollateralLong(next.MetaOf().LongToken)
	collateralTokenPrice := p.Prices.CollateralPrice(isCollateralLong).Pick(false)
	if collateralTokenPrice.IsZero() {
		return market.Market{}, position.Position{}, Report{}, primitives.ErrDivByZero
	}

	// Step 2: settle fees owed on the position's existing size before it
	// grows, so growth-phase fees are priced only against the size delta.
	owedFees, err := settleOwedFees(next, pos, isLong, collateralTokenPrice)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	indexPrice := p.Prices.IndexTokenPrice.Pick(isLong)

	// Step 3: capped position price impact, execution price, acceptable
	// price check.
	priceImpactUsd, _, err := impact.CappedPositionPriceImpact(next, indexPrice, isLong, p.SizeDeltaUsd.ToSigned(), false)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	executionPrice, err := impact.ExecutionPrice(indexPrice, p.SizeDeltaUsd, priceImpactUsd, isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if err := impact.ValidateAcceptablePrice(executionPrice, p.AcceptablePrice, isLong); err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 4: base order fee against the size delta.
	isPositiveImpact := priceImpactUsd.IsPositive()
	orderFees, err := fees.BasePositionFees(next.OrderFeeConfig(), collateralTokenPrice, p.SizeDeltaUsd, isPositiveImpact)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	allFees, err := orderFees.WithBorrowingFee(next.BorrowingConfig().ReceiverFactor, owedFees.BorrowingFeeAmount)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	allFees = allFees.WithFundingFees(owedFees.Funding)

	// Step 5: pay fees from the collateral increment.
	totalCost, err := allFees.TotalCostAmount()
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if p.CollateralIncrementAmount.LessThan(totalCost) {
		return market.Market{}, position.Position{}, Report{}, errs.NewStep(errs.StepFees, "increase_position: collateral increment insufficient to pay fees")
	}
	remainingCollateral, err := p.CollateralIncrementAmount.CheckedSub(totalCost)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 6: size_delta_in_tokens, rounded conservatively.
	if executionPrice.IsZero() {
		return market.Market{}, position.Position{}, Report{}, primitives.ErrDivByZero
	}
	rounding := primitives.RoundDown
	if isLong {
		rounding = primitives.RoundUp
	}
	sizeDeltaInTokens, err := primitives.MulDiv(p.SizeDeltaUsd, primitives.NewU(1), executionPrice, rounding)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 7: update the position.
	nextPos := pos
	nextPos.CollateralAmount, err = pos.CollateralAmount.CheckedAdd(remainingCollateral)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextPos.SizeInUsd, err = pos.SizeInUsd.CheckedAdd(p.SizeDeltaUsd)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextPos.SizeInTokens, err = pos.SizeInTokens.CheckedAdd(sizeDeltaInTokens)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextPos.BorrowingFactor, err = next.BorrowingFactor(isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextPos.FundingFeeAmountPerSize, err = next.FundingAmountPerSize(isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	longClaimablePerSize, err := next.ClaimableFundingAmountPerSize(true)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	shortClaimablePerSize, err := next.ClaimableFundingAmountPerSize(false)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextPos = nextPos.WithClaimableFundingAmountPerSize(true, longClaimablePerSize)
	nextPos = nextPos.WithClaimableFundingAmountPerSize(false, shortClaimablePerSize)
	nextPos.IncreasedAtTime = p.Now
	nextPos.UpdatedAtTime = p.Now
	if err := nextPos.Validate(); err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 8: update the market.
	next, err = next.ApplyDeltaToOpenInterest(isLong, p.SizeDeltaUsd.ToSigned(), sizeDeltaInTokens.ToSigned())
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = applyPositionImpactPoolDelta(next, indexPrice, priceImpactUsd)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	forPool, err := allFees.ForPool()
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	forReceiver, err := allFees.ForReceiver()
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.ApplyDeltaToPoolSide(market.PoolLiquidity, isCollateralLong, forPool.ToSigned())
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.ApplyDeltaToPoolSide(market.PoolClaimableFee, isCollateralLong, forReceiver.ToSigned())
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.ApplyDeltaToCollateralSum(isCollateralLong, remainingCollateral.ToSigned())
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.RecordTransferredIn(isCollateralLong, p.CollateralIncrementAmount)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.IncrementTradeCount()
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 9: post-state validation.
	if err := validatePostIncrease(next, nextPos, p.Prices, isLong, isCollateralLong); err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	return next, nextPos, Report{
		Fees:                      allFees,
		ExecutionPrice:            executionPrice,
		PriceImpactUsd:            priceImpactUsd,
		SizeDeltaInTokens:         sizeDeltaInTokens,
		ClaimableLongTokenAmount:  owedFees.Funding.ClaimableLongTokenAmount,
		ClaimableShortTokenAmount: owedFees.Funding.ClaimableShortTokenAmount,
	}, nil
}

// settleOwedFees prices the borrowing and funding fees/claimables accrued
// on pos's pre-existing size against mkt's current (just-advanced)
// cumulative factors (spec.md §4.8 step 2).
func settleOwedFees(mkt market.Market, pos position.Position, isLong bool, collateralTokenPrice primitives.U) (fees.PositionFees, error) {
	marketBorrowingFactor, err := mkt.BorrowingFactor(isLong)
	if err != nil {
		return fees.PositionFees{}, err
	}
	borrowingFeeUsd, err := borrowing.FeeSinceSnapshot(pos.SizeInUsd, marketBorrowingFactor, pos.BorrowingFactor)
	if err != nil {
		return fees.PositionFees{}, err
	}
	borrowingFeeAmount, err := primitives.MulDiv(borrowingFeeUsd, primitives.NewU(1), collateralTokenPrice, primitives.RoundUp)
	if err != nil {
		return fees.PositionFees{}, err
	}

	marketFundingPerSize, err := mkt.FundingAmountPerSize(isLong)
	if err != nil {
		return fees.PositionFees{}, err
	}
	fundingFeeAmount, err := funding.UnpackToFundingFee(pos.SizeInUsd, marketFundingPerSize, pos.FundingFeeAmountPerSize)
	if err != nil {
		return fees.PositionFees{}, err
	}

	longClaimablePerSize, err := mkt.ClaimableFundingAmountPerSize(true)
	if err != nil {
		return fees.PositionFees{}, err
	}
	claimableLong, err := funding.UnpackToClaimableFundingFee(pos.SizeInUsd, longClaimablePerSize, pos.LongTokenClaimableFundingAmountPerSize)
	if err != nil {
		return fees.PositionFees{}, err
	}
	shortClaimablePerSize, err := mkt.ClaimableFundingAmountPerSize(false)
	if err != nil {
		return fees.PositionFees{}, err
	}
	claimableShort, err := funding.UnpackToClaimableFundingFee(pos.SizeInUsd, shortClaimablePerSize, pos.ShortTokenClaimableFundingAmountPerSize)
	if err != nil {
		return fees.PositionFees{}, err
	}

	var out fees.PositionFees
	out, err = out.WithBorrowingFee(primitives.ZeroU(), borrowingFeeAmount)
	if err != nil {
		return fees.PositionFees{}, err
	}
	out = out.WithFundingFees(fees.FundingFees{
		Amount:                    fundingFeeAmount,
		ClaimableLongTokenAmount:  claimableLong,
		ClaimableShortTokenAmount: claimableShort,
	})
	return out, nil
}

// applyPositionImpactPoolDelta credits the position-impact pool the
// opposite-signed, index-token-denominated amount of priceImpactUsd
// (spec.md §4.8 step 8): a charge to the trader (negative impact) grows
// the pool that will later be amortized back into liquidity; a credit to
// the trader (positive impact) drains it.
func applyPositionImpactPoolDelta(mkt market.Market, indexTokenPrice primitives.U, priceImpactUsd primitives.S) (market.Market, error) {
	if priceImpactUsd.IsZero() {
		return mkt, nil
	}
	if indexTokenPrice.IsZero() {
		return market.Market{}, primitives.ErrDivByZero
	}
	magnitude, err := primitives.MulDiv(priceImpactUsd.Abs(), primitives.NewU(1), indexTokenPrice, primitives.RoundDown)
	if err != nil {
		return market.Market{}, err
	}
	delta := magnitude.ToSigned()
	if priceImpactUsd.IsPositive() {
		delta = delta.Neg()
	}
	return mkt.ApplyDeltaToPositionImpactPool(delta)
}

// validatePostIncrease enforces spec.md §4.8 step 9's post-state checks.
// max_positive_position_impact_factor is enforced by construction at
// impact.CappedPositionPriceImpact's capping step, not re-checked here.
func validatePostIncrease(mkt market.Market, pos position.Position, prices primitives.Prices, isLong, isCollateralLong bool) error {
	cfg := mkt.PositionConfig()
	if pos.SizeInUsd.LessThan(cfg.MinPositionSizeUsd) {
		return errs.New(errs.KindInvalidPosition, "min_position_size_usd")
	}

	collateralTokenPrice := prices.CollateralPrice(isCollateralLong).Pick(false)
	collateralValue, err := pos.CollateralValue(collateralTokenPrice)
	if err != nil {
		return err
	}
	if collateralValue.LessThan(cfg.MinCollateralValue) {
		return errs.New(errs.KindInvalidPosition, "min_collateral_value")
	}

	effectiveMinFactor := cfg.MinCollateralFactor
	oiUsd, err := mkt.OpenInterestUsd(isLong)
	if err != nil {
		return err
	}
	oiMultiplier := cfg.MinCollateralFactorForOpenInterestMultiplier.Get(isLong)
	minFactorForOI, err := primitives.ApplyFactor(oiUsd, oiMultiplier, primitives.RoundUp)
	if err != nil {
		return err
	}
	effectiveMinFactor = primitives.MaxU(effectiveMinFactor, minFactorForOI)
	minCollateralForLeverage, err := primitives.ApplyFactor(pos.SizeInUsd, effectiveMinFactor, primitives.RoundUp)
	if err != nil {
		return err
	}
	if collateralValue.LessThan(minCollateralForLeverage) {
		return errs.New(errs.KindInvalidPosition, "min_collateral_factor")
	}

	if err := mkt.ValidateMaxOpenInterest(isLong); err != nil {
		return err
	}
	return nil
}
