// Package fees prices swap and position order fees and the PnL/borrowing/
// funding cost aggregation a decrease settles against a position's
// collateral (spec.md C10, §4.8-§4.10). Amounts are priced in whichever
// token the caller supplies a price for; the package does no pool
// accounting of its own, only arithmetic.
package fees

import (
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/primitives"
)

// SwapFees prices a swap's fee against tokenInAmount, splitting it between
// the pool and the fee receiver (C8, spec.md §4.3). The fee factor depends
// on whether the swap's price impact was positive or negative.
func SwapFees(cfg market.SwapFeeParams, tokenInAmount primitives.U, isPositiveImpact bool) (amountAfterFees, feeAmountForPool, feeAmountForReceiver primitives.U, err error) {
	factor := cfg.FactorForNegativeImpact
	if isPositiveImpact {
		factor = cfg.FactorForPositiveImpact
	}
	feeAmount, err := primitives.ApplyFactor(tokenInAmount, factor, primitives.RoundUp)
	if err != nil {
		return primitives.U{}, primitives.U{}, primitives.U{}, err
	}
	feeAmountForReceiver, err = primitives.ApplyFactor(feeAmount, cfg.ReceiverFactor, primitives.RoundDown)
	if err != nil {
		return primitives.U{}, primitives.U{}, primitives.U{}, err
	}
	feeAmountForPool, err = feeAmount.CheckedSub(feeAmountForReceiver)
	if err != nil {
		return primitives.U{}, primitives.U{}, primitives.U{}, err
	}
	amountAfterFees, err = tokenInAmount.CheckedSub(feeAmount)
	if err != nil {
		return primitives.U{}, primitives.U{}, primitives.U{}, err
	}
	return amountAfterFees, feeAmountForPool, feeAmountForReceiver, nil
}

// FundingFees is the settlement of a position's funding obligation/income
// at decrease time: Amount is owed (in collateral token units) by the
// position's own side, the two claimable fields are this position's share
// of the opposite side's accrued claimable income (C6, spec.md §4.5).
type FundingFees struct {
	Amount                    primitives.U
	ClaimableLongTokenAmount  primitives.U
	ClaimableShortTokenAmount primitives.U
}

// PositionFees aggregates every cost a decrease settles against a
// position's collateral, in collateral-token units (spec.md §4.8/§4.10).
type PositionFees struct {
	FeeAmountForPool     primitives.U
	FeeAmountForReceiver primitives.U

	BorrowingFeeAmount            primitives.U
	BorrowingFeeAmountForReceiver primitives.U

	Funding FundingFees
}

// BasePositionFees prices an order's base fee against sizeDeltaUsd,
// converted into collateralTokenPrice-denominated units and split between
// pool and receiver (spec.md §4.8 step "order fee").
func BasePositionFees(cfg market.OrderFeeParams, collateralTokenPrice primitives.U, sizeDeltaUsd primitives.U, isPositiveImpact bool) (PositionFees, error) {
	factor := cfg.FactorForNegativeImpact
	if isPositiveImpact {
		factor = cfg.FactorForPositiveImpact
	}
	feeUsd, err := primitives.ApplyFactor(sizeDeltaUsd, factor, primitives.RoundUp)
	if err != nil {
		return PositionFees{}, err
	}
	if collateralTokenPrice.IsZero() {
		return PositionFees{}, primitives.ErrDivByZero
	}
	feeAmount, err := primitives.MulDiv(feeUsd, primitives.NewU(1), collateralTokenPrice, primitives.RoundUp)
	if err != nil {
		return PositionFees{}, err
	}
	feeForReceiver, err := primitives.ApplyFactor(feeAmount, cfg.ReceiverFactor, primitives.RoundDown)
	if err != nil {
		return PositionFees{}, err
	}
	feeForPool, err := feeAmount.CheckedSub(feeForReceiver)
	if err != nil {
		return PositionFees{}, err
	}
	return PositionFees{FeeAmountForPool: feeForPool, FeeAmountForReceiver: feeForReceiver}, nil
}

// WithBorrowingFee splits borrowingFeeAmount (already in collateral-token
// units) between pool and receiver per the market's borrowing receiver
// factor, and returns a copy of f with the split recorded.
func (f PositionFees) WithBorrowingFee(borrowingReceiverFactor primitives.U, borrowingFeeAmount primitives.U) (PositionFees, error) {
	forReceiver, err := primitives.ApplyFactor(borrowingFeeAmount, borrowingReceiverFactor, primitives.RoundDown)
	if err != nil {
		return PositionFees{}, err
	}
	next := f
	next.BorrowingFeeAmount = borrowingFeeAmount
	next.BorrowingFeeAmountForReceiver = forReceiver
	return next, nil
}

// WithFundingFees returns a copy of f with the funding settlement recorded.
func (f PositionFees) WithFundingFees(funding FundingFees) PositionFees {
	next := f
	next.Funding = funding
	return next
}

// ForPool is the portion of every cost that is credited to the liquidity
// pool rather than the claimable-fee pool.
func (f PositionFees) ForPool() (primitives.U, error) {
	forPoolBorrowing, err := f.BorrowingFeeAmount.CheckedSub(f.BorrowingFeeAmountForReceiver)
	if err != nil {
		return primitives.U{}, err
	}
	return f.FeeAmountForPool.CheckedAdd(forPoolBorrowing)
}

// ForReceiver is the portion of every cost credited to the claimable-fee
// pool (the protocol's fee receiver).
func (f PositionFees) ForReceiver() (primitives.U, error) {
	return f.FeeAmountForReceiver.CheckedAdd(f.BorrowingFeeAmountForReceiver)
}

// TotalCostExcludingFunding sums every cost except the funding settlement
// (spec.md §4.10 step e: funding is paid separately, first).
func (f PositionFees) TotalCostExcludingFunding() (primitives.U, error) {
	sum, err := f.FeeAmountForPool.CheckedAdd(f.FeeAmountForReceiver)
	if err != nil {
		return primitives.U{}, err
	}
	return sum.CheckedAdd(f.BorrowingFeeAmount)
}

// TotalCostAmount sums every cost, including the funding fee owed.
func (f PositionFees) TotalCostAmount() (primitives.U, error) {
	excluding, err := f.TotalCostExcludingFunding()
	if err != nil {
		return primitives.U{}, err
	}
	return excluding.CheckedAdd(f.Funding.Amount)
}

// ClearFeesExcludingFunding zeroes every cost except the funding settlement,
// used when the collateral waterfall could not collect the fee in full or
// collected part of it from the secondary output token (spec.md §4.10 step
// e: simplified accounting then credits nothing further to pool/receiver).
func (f PositionFees) ClearFeesExcludingFunding() PositionFees {
	next := f
	next.FeeAmountForPool = primitives.ZeroU()
	next.FeeAmountForReceiver = primitives.ZeroU()
	next.BorrowingFeeAmount = primitives.ZeroU()
	next.BorrowingFeeAmountForReceiver = primitives.ZeroU()
	return next
}
