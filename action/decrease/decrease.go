// Package decrease implements the core's decrease-position action (C10,
// spec.md §4.9): partial or full position close, routed through the
// collateral settlement waterfall (spec.md §4.10), with liquidation-order
// gating and an optional closing swap of the secondary output into the
// primary output token.
package decrease

import (
	"github.com/johnayoung/perpcore/action/swap"
	"github.com/johnayoung/perpcore/borrowing"
	"github.com/johnayoung/perpcore/collateral"
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/fees"
	"github.com/johnayoung/perpcore/funding"
	"github.com/johnayoung/perpcore/impact"
	"github.com/johnayoung/perpcore/liquidation"
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/position"
	"github.com/johnayoung/perpcore/primitives"
)

// SwapType names what, if anything, to do with a leftover secondary output
// once the waterfall settles (spec.md §4.9 step 12).
type SwapType int

const (
	NoSwap SwapType = iota
	PnlTokenToCollateralToken
	CollateralToPnlToken
)

// Params is the input to Execute.
type Params struct {
	SizeDeltaUsd               primitives.U
	CollateralWithdrawalAmount primitives.U
	AcceptablePrice            *primitives.U
	IsInsolventCloseAllowed    bool
	IsLiquidationOrder         bool
	Swap                       SwapType
	Prices                     primitives.Prices
	Now                        int64
}

// Report summarizes a settled decrease for the host.
type Report struct {
	ShouldRemove               bool
	PriceImpactUsd             primitives.S
	PriceImpactDiff            primitives.U
	ExecutionPrice             primitives.U
	SizeDeltaInTokens          primitives.U
	IsOutputTokenLong          bool
	IsSecondaryOutputTokenLong bool
	OutputAmount               primitives.U
	SecondaryOutputAmount      primitives.U
	RemainingCollateralAmount  primitives.U
	ForHolding                 collateral.ClaimableCollateral
	ForUser                    collateral.ClaimableCollateral
	InsolventCloseStep         errs.Step
	Fees                       fees.PositionFees
	PnlUsd                     primitives.S
	UncappedPnlUsd             primitives.S
}

// Execute settles a decrease of pos against mkt, returning the updated
// market, the updated (or zeroed, if fully closed) position, and a report
// of what was paid and credited. On any error neither mkt nor pos reflect
// the attempted change.
func Execute(mkt market.Market, pos position.Position, p Params) (market.Market, position.Position, Report, error) {
	if err := primitives.Validate(p.Prices); err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if pos.IsEmpty() {
		return market.Market{}, position.Position{}, Report{}, errs.New(errs.KindInvalidPosition, "decrease_position: position is empty")
	}
	sizeDeltaUsd := primitives.MinU(p.SizeDeltaUsd, pos.SizeInUsd)
	collateralWithdrawal := primitives.MinU(p.CollateralWithdrawalAmount, pos.CollateralAmount)
	if p.IsInsolventCloseAllowed && (!sizeDeltaUsd.Equal(pos.SizeInUsd) || !p.IsLiquidationOrder) {
		return market.Market{}, position.Position{}, Report{}, errs.New(errs.KindInvalidPosition, "decrease_position: insolvent close requires a full close via a liquidation order")
	}

	isLong := pos.IsLong
	isCollateralLong := pos.IsCollateralLong(mkt.MetaOf().LongToken)
	collateralTokenPrice := p.Prices.CollateralPrice(isCollateralLong).Pick(false)
	if collateralTokenPrice.IsZero() {
		return market.Market{}, position.Position{}, Report{}, primitives.ErrDivByZero
	}

	// Step 1: partial-close sanity. An estimated pnl on the partial size is
	// checked against the post-decrease remaining value; insufficiency
	// cancels the withdrawal, and a remaining value or size below the
	// market's floors upgrades the action to a full close.
	isFullClose := sizeDeltaUsd.Equal(pos.SizeInUsd)
	if !isFullClose {
		estimatedPnlUsd, _, _, err := pos.PnlValue(p.Prices.IndexTokenPrice.Mid(), sizeDeltaUsd)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		collateralValue, err := pos.CollateralValue(collateralTokenPrice)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		withdrawalUsd, err := collateralWithdrawal.CheckedMul(collateralTokenPrice)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		remainingValue := collateralValue.ToSigned().Add(estimatedPnlUsd).Sub(withdrawalUsd.ToSigned())
		if !remainingValue.IsPositive() {
			collateralWithdrawal = primitives.ZeroU()
			remainingValue = collateralValue.ToSigned().Add(estimatedPnlUsd)
		}

		cfg := mkt.PositionConfig()
		nextSizeInUsd, err := pos.SizeInUsd.CheckedSub(sizeDeltaUsd)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		belowMinCollateral := !remainingValue.IsPositive()
		if remainingValue.IsPositive() {
			remainingValueU, err := remainingValue.ToUnsigned()
			if err != nil {
				return market.Market{}, position.Position{}, Report{}, err
			}
			belowMinCollateral = remainingValueU.LessThan(cfg.MinCollateralValue)
		}
		if belowMinCollateral || nextSizeInUsd.LessThan(cfg.MinPositionSizeUsd) {
			sizeDeltaUsd = pos.SizeInUsd
			isFullClose = true
		}
	}

	// Step 2: close sanity.
	if isFullClose {
		collateralWithdrawal = primitives.ZeroU()
	}

	// Step 3: bring market state current.
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

	// Step 4: liquidation gate.
	if p.IsLiquidationOrder {
		if err := liquidation.MustCheck(pos, next, p.Prices); err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
	}

	// Step 5: execution price, capped price impact, and position PnL.
	indexPrice := p.Prices.IndexTokenPrice.Pick(!isLong)
	priceImpactUsd, priceImpactDiff, err := impact.CappedPositionPriceImpact(next, indexPrice, isLong, sizeDeltaUsd.ToSigned().Neg(), p.IsLiquidationOrder)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	executionPrice, err := impact.ExecutionPrice(indexPrice, sizeDeltaUsd, priceImpactUsd, isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if !p.IsLiquidationOrder {
		if err := impact.ValidateAcceptablePrice(executionPrice, p.AcceptablePrice, !isLong); err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
	}
	pnlUsd, uncappedPnlUsd, sizeDeltaInTokens, err := pos.PnlValue(executionPrice, sizeDeltaUsd)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Fees owed on the size being settled.
	isPositiveImpact := priceImpactUsd.IsPositive()
	orderFees, err := fees.BasePositionFees(next.OrderFeeConfig(), collateralTokenPrice, sizeDeltaUsd, isPositiveImpact)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	marketBorrowingFactor, err := next.BorrowingFactor(isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	borrowingFeeUsd, err := borrowing.FeeSinceSnapshot(pos.SizeInUsd, marketBorrowingFactor, pos.BorrowingFactor)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	borrowingFeeAmount, err := primitives.MulDiv(borrowingFeeUsd, primitives.NewU(1), collateralTokenPrice, primitives.RoundUp)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	allFees, err := orderFees.WithBorrowingFee(next.BorrowingConfig().ReceiverFactor, borrowingFeeAmount)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	marketFundingPerSize, err := next.FundingAmountPerSize(isLong)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	fundingFeeAmount, err := funding.UnpackToFundingFee(pos.SizeInUsd, marketFundingPerSize, pos.FundingFeeAmountPerSize)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	longClaimablePerSizeOwed, err := next.ClaimableFundingAmountPerSize(true)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	claimableLongOwed, err := funding.UnpackToClaimableFundingFee(pos.SizeInUsd, longClaimablePerSizeOwed, pos.LongTokenClaimableFundingAmountPerSize)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	shortClaimablePerSizeOwed, err := next.ClaimableFundingAmountPerSize(false)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	claimableShortOwed, err := funding.UnpackToClaimableFundingFee(pos.SizeInUsd, shortClaimablePerSizeOwed, pos.ShortTokenClaimableFundingAmountPerSize)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	allFees = allFees.WithFundingFees(fees.FundingFees{
		Amount:                    fundingFeeAmount,
		ClaimableLongTokenAmount:  claimableLongOwed,
		ClaimableShortTokenAmount: claimableShortOwed,
	})

	// Step 6: the collateral waterfall.
	proc := collateral.New(next, p.Prices, isCollateralLong, isLong, pos.CollateralAmount, p.IsInsolventCloseAllowed)
	proc, err = proc.Process(func(pr collateral.Processor) (collateral.Processor, error) {
		pr, err := pr.AddPnlIfPositive(pnlUsd)
		if err != nil {
			return pr, err
		}
		pr, err = pr.AddPriceImpactIfPositive(priceImpactUsd)
		if err != nil {
			return pr, err
		}
		pr, err = pr.PayForFundingFees(allFees.Funding)
		if err != nil {
			return pr, err
		}
		pr, err = pr.PayForPnlIfNegative(pnlUsd)
		if err != nil {
			return pr, err
		}
		var cleared fees.PositionFees
		pr, cleared, err = pr.PayForFeesExcludingFunding(allFees)
		if err != nil {
			return pr, err
		}
		allFees = cleared
		pr, err = pr.PayForPriceImpactIfNegative(priceImpactUsd)
		if err != nil {
			return pr, err
		}
		pr, err = pr.PayForPriceImpactDiff(priceImpactDiff)
		if err != nil {
			return pr, err
		}
		return pr, nil
	})
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next = proc.Market

	// Step 7: finalize the position.
	nextPos := pos
	shouldRemove := false
	nextSizeInUsd, err := pos.SizeInUsd.CheckedSub(sizeDeltaUsd)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	nextSizeInTokens, err := pos.SizeInTokens.CheckedSub(sizeDeltaInTokens)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	if nextSizeInUsd.IsZero() || nextSizeInTokens.IsZero() {
		shouldRemove = true
		proc.OutputAmount, err = proc.OutputAmount.CheckedAdd(proc.RemainingCollateralAmount)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		proc.RemainingCollateralAmount = primitives.ZeroU()
		nextPos = position.Position{}
	} else {
		nextPos.SizeInUsd = nextSizeInUsd
		nextPos.SizeInTokens = nextSizeInTokens
		nextPos.CollateralAmount = proc.RemainingCollateralAmount
		nextPos.BorrowingFactor = marketBorrowingFactor
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
		nextPos.DecreasedAtTime = p.Now
		nextPos.UpdatedAtTime = p.Now
	}

	// Step 8: shrink the withdrawal by the capped-off impact diff.
	if !collateralWithdrawal.IsZero() && !priceImpactDiff.IsZero() {
		diffInCollateral, err := primitives.MulDiv(priceImpactDiff, primitives.NewU(1), collateralTokenPrice, primitives.RoundUp)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		if diffInCollateral.GreaterThan(collateralWithdrawal) {
			collateralWithdrawal = primitives.ZeroU()
		} else {
			collateralWithdrawal, err = collateralWithdrawal.CheckedSub(diffInCollateral)
			if err != nil {
				return market.Market{}, position.Position{}, Report{}, err
			}
		}
	}

	// Step 9: cap and move the withdrawal into the output.
	collateralWithdrawal = primitives.MinU(collateralWithdrawal, proc.RemainingCollateralAmount)
	if !collateralWithdrawal.IsZero() {
		proc.RemainingCollateralAmount, err = proc.RemainingCollateralAmount.CheckedSub(collateralWithdrawal)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		proc.OutputAmount, err = proc.OutputAmount.CheckedAdd(collateralWithdrawal)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		if !shouldRemove {
			nextPos.CollateralAmount = proc.RemainingCollateralAmount
		}
	}

	// The market's collateral_sum_pool tracks what stays in custody under
	// this collateral-token side: whatever the waterfall and withdrawal
	// left as RemainingCollateralAmount, versus what the position held
	// before this decrease (spec.md §4.9 step 7's "update collateral_sum_pool").
	collateralDelta := proc.RemainingCollateralAmount.ToSigned().Sub(pos.CollateralAmount.ToSigned())
	next, err = next.ApplyDeltaToCollateralSum(isCollateralLong, collateralDelta)
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 10: open-interest update, negated.
	next, err = next.ApplyDeltaToOpenInterest(isLong, sizeDeltaUsd.ToSigned().Neg(), sizeDeltaInTokens.ToSigned().Neg())
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}
	next, err = next.IncrementTradeCount()
	if err != nil {
		return market.Market{}, position.Position{}, Report{}, err
	}

	// Step 11: post-validation, skipping the floors the finalize step
	// already accounted for.
	if !shouldRemove {
		if err := nextPos.Validate(); err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		if err := next.ValidateMaxOpenInterest(isLong); err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
	}

	// Step 12: post-processing swap of any leftover secondary output into
	// the primary output token.
	outputAmount := proc.OutputAmount
	secondaryOutputAmount := proc.SecondaryOutputAmount
	isSecondaryOutputTokenLong := isLong
	if !secondaryOutputAmount.IsZero() && !proc.ArePnlAndCollateralTokensTheSame && p.Swap != NoSwap {
		var swapReport swap.Report
		next, swapReport, err = swap.Execute(next, swap.Params{
			IsTokenInLong: isSecondaryOutputTokenLong,
			TokenInAmount: secondaryOutputAmount,
			Prices:        p.Prices,
		})
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		outputAmount, err = outputAmount.CheckedAdd(swapReport.TokenOutAmount)
		if err != nil {
			return market.Market{}, position.Position{}, Report{}, err
		}
		secondaryOutputAmount = primitives.ZeroU()
	}

	return next, nextPos, Report{
		ShouldRemove:               shouldRemove,
		PriceImpactUsd:             priceImpactUsd,
		PriceImpactDiff:            priceImpactDiff,
		ExecutionPrice:             executionPrice,
		SizeDeltaInTokens:          sizeDeltaInTokens,
		IsOutputTokenLong:          isCollateralLong,
		IsSecondaryOutputTokenLong: isSecondaryOutputTokenLong,
		OutputAmount:               outputAmount,
		SecondaryOutputAmount:      secondaryOutputAmount,
		RemainingCollateralAmount:  proc.RemainingCollateralAmount,
		ForHolding:                 proc.ForHolding,
		ForUser:                    proc.ForUser,
		InsolventCloseStep:         proc.InsolventCloseStep,
		Fees:                       allFees,
		PnlUsd:                     pnlUsd,
		UncappedPnlUsd:             uncappedPnlUsd,
	}, nil
}
