// Package liquidation implements the core's liquidation predicate (C11,
// spec.md §4.11): whether a position's remaining collateral value, after
// accounting for its full-close PnL, capped negative price impact, and
// fees, still covers the market's minimum collateral floor and the
// leverage-proportional minimum.
package liquidation

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

// Reason names why a position is liquidatable, or that it is not.
type Reason string

const (
	// ReasonNone reports that the position is not liquidatable.
	ReasonNone Reason = ""
	// ReasonNotPositive reports the position's remaining collateral value
	// (after PnL, impact, and fees) is zero or negative.
	ReasonNotPositive Reason = "remaining_collateral_not_positive"
	// ReasonMinCollateral reports remaining collateral value fell below the
	// market's absolute minimum collateral floor.
	ReasonMinCollateral Reason = "min_collateral_value"
	// ReasonMinCollateralForLeverage reports remaining collateral value fell
	// below the leverage-proportional minimum (min_collateral_factor * size).
	ReasonMinCollateralForLeverage Reason = "min_collateral_factor_for_leverage"
)

// Check runs the full liquidation predicate against pos at the given
// prices, returning ReasonNone if the position is healthy. shouldValidateMinCollateralUsd
// gates the absolute min_collateral_value check; MustCheck, the liquidation
// order's own check_liquidation gate, always passes true.
func Check(pos position.Position, mkt market.PerpMarket, prices primitives.Prices, shouldValidateMinCollateralUsd bool) (Reason, error) {
	if pos.IsEmpty() {
		return ReasonNone, nil
	}

	indexTokenPrice := prices.IndexTokenPrice.Mid()

	pnlUsd, _, _, err := pos.PnlValue(indexTokenPrice, pos.SizeInUsd)
	if err != nil {
		return ReasonNone, err
	}

	isCollateralLong := pos.IsCollateralLong(mkt.MetaOf().LongToken)
	collateralTokenPrice := prices.CollateralPrice(isCollateralLong).Pick(false)
	collateralValue, err := pos.CollateralValue(collateralTokenPrice)
	if err != nil {
		return ReasonNone, err
	}

	sizeDeltaUsd := pos.SizeInUsd.ToSigned().Neg()
	priceImpactValue, _, err := impact.CappedPositionPriceImpact(mkt, indexTokenPrice, pos.IsLong, sizeDeltaUsd, true)
	if err != nil {
		return ReasonNone, err
	}
	isPositiveImpact := priceImpactValue.IsPositive()
	if isPositiveImpact {
		// Only a negative (capped) impact erodes the liquidation buffer; a
		// positive impact is not credited toward it.
		priceImpactValue = primitives.ZeroS()
	}

	cost, err := computeClosingCost(pos, mkt, collateralTokenPrice, isPositiveImpact)
	if err != nil {
		return ReasonNone, err
	}
	collateralCostValue, err := cost.CheckedMul(collateralTokenPrice)
	if err != nil {
		return ReasonNone, err
	}

	remaining := collateralValue.ToSigned().Add(pnlUsd).Add(priceImpactValue).Sub(collateralCostValue.ToSigned())

	cfg := mkt.PositionConfig()
	minForLeverage, err := primitives.ApplyFactor(pos.SizeInUsd, cfg.MinCollateralFactor, primitives.RoundDown)
	if err != nil {
		return ReasonNone, err
	}

	if !remaining.IsPositive() {
		return ReasonNotPositive, nil
	}
	remainingU, err := remaining.ToUnsigned()
	if err != nil {
		return ReasonNone, err
	}
	if shouldValidateMinCollateralUsd && remainingU.LessThan(cfg.MinCollateralValue) {
		return ReasonMinCollateral, nil
	}
	if remainingU.LessThan(minForLeverage) {
		return ReasonMinCollateralForLeverage, nil
	}
	return ReasonNone, nil
}

// computeClosingCost prices the fees a full close would incur, in
// collateral-token units, using the position's real order/borrowing/funding
// settlement rather than treating fees as zero.
func computeClosingCost(pos position.Position, mkt market.PerpMarket, collateralTokenPrice primitives.U, isPositiveImpact bool) (primitives.U, error) {
	base, err := fees.BasePositionFees(mkt.OrderFeeConfig(), collateralTokenPrice, pos.SizeInUsd, isPositiveImpact)
	if err != nil {
		return primitives.U{}, err
	}

	marketBorrowingFactor, err := mkt.BorrowingFactor(pos.IsLong)
	if err != nil {
		return primitives.U{}, err
	}
	borrowingFeeUsd, err := borrowing.FeeSinceSnapshot(pos.SizeInUsd, marketBorrowingFactor, pos.BorrowingFactor)
	if err != nil {
		return primitives.U{}, err
	}
	if collateralTokenPrice.IsZero() {
		return primitives.U{}, primitives.ErrDivByZero
	}
	borrowingFeeAmount, err := primitives.MulDiv(borrowingFeeUsd, primitives.NewU(1), collateralTokenPrice, primitives.RoundUp)
	if err != nil {
		return primitives.U{}, err
	}
	withBorrowing, err := base.WithBorrowingFee(mkt.BorrowingConfig().ReceiverFactor, borrowingFeeAmount)
	if err != nil {
		return primitives.U{}, err
	}

	marketFundingPerSize, err := mkt.FundingAmountPerSize(pos.IsLong)
	if err != nil {
		return primitives.U{}, err
	}
	fundingAmount, err := funding.UnpackToFundingFee(pos.SizeInUsd, marketFundingPerSize, pos.FundingFeeAmountPerSize)
	if err != nil {
		return primitives.U{}, err
	}
	withFunding := withBorrowing.WithFundingFees(fees.FundingFees{Amount: fundingAmount})

	return withFunding.TotalCostAmount()
}

// MustCheck is a thin wrapper used by decrease/liquidation-order processing
// to turn Check's Reason into the Liquidatable/NotLiquidatable sentinel
// errors a liquidation order's own gate enforces (spec.md §4.9's
// check_liquidation step).
func MustCheck(pos position.Position, mkt market.PerpMarket, prices primitives.Prices) error {
	reason, err := Check(pos, mkt, prices, true)
	if err != nil {
		return err
	}
	if reason == ReasonNone {
		return errs.New(errs.KindNotLiquidatable, "position does not satisfy the liquidation predicate")
	}
	return nil
}
