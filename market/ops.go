package market

import (
	"github.com/johnayoung/perpcore/pool"
	"github.com/johnayoung/perpcore/primitives"
)

// ApplyDeltaToPool applies a both-sided Delta to the named pool and writes
// the result back, honoring the market's pure-market rewrite rule.
func (m Market) ApplyDeltaToPool(kind PoolKind, d pool.Delta) (Market, error) {
	p, err := m.PoolOf(kind)
	if err != nil {
		return Market{}, err
	}
	next, err := p.ApplyDelta(d, m.IsPure())
	if err != nil {
		return Market{}, err
	}
	return m.WithPool(kind, next)
}

// ApplyDeltaToPoolSide applies a one-sided delta to the named pool, routed
// to the long or short amount depending on isLong.
func (m Market) ApplyDeltaToPoolSide(kind PoolKind, isLong bool, delta primitives.S) (Market, error) {
	p, err := m.PoolOf(kind)
	if err != nil {
		return Market{}, err
	}
	var next pool.Pool
	if isLong {
		next, err = p.ApplyDeltaToLongAmount(delta)
	} else {
		next, err = p.ApplyDeltaToShortAmount(delta, m.IsPure())
	}
	if err != nil {
		return Market{}, err
	}
	return m.WithPool(kind, next)
}

// PoolSideAmount reads the named pool's long or short amount.
func (m Market) PoolSideAmount(kind PoolKind, isLong bool) (primitives.U, error) {
	p, err := m.PoolOf(kind)
	if err != nil {
		return primitives.U{}, err
	}
	if isLong {
		return p.LongAmount(), nil
	}
	return p.ShortAmount(m.IsPure()), nil
}

// PoolUsdValue values the liquidity pool's side at the supplied price,
// picking min/max per maximize.
func (m Market) PoolUsdValue(isLong bool, price primitives.Price, maximize bool) (primitives.U, error) {
	amount, err := m.PoolSideAmount(PoolLiquidity, isLong)
	if err != nil {
		return primitives.U{}, err
	}
	return amount.CheckedMul(price.Pick(maximize))
}

// OpenInterestUsd reports the open interest (USD) held by positions on the
// given side. The core collapses the collateral-token sub-split the open
// interest pool conceptually carries (spec.md §3's single pool-per-kind
// model) into the position-direction dimension alone: Long holds OI for
// long positions, Short for short positions.
func (m Market) OpenInterestUsd(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolOpenInterest, isLong)
}

// OpenInterestInTokens mirrors OpenInterestUsd for the token-denominated pool.
func (m Market) OpenInterestInTokens(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolOpenInterestInTokens, isLong)
}

// ApplyDeltaToOpenInterest applies signed USD/token deltas to the open
// interest pools for the given position side.
func (m Market) ApplyDeltaToOpenInterest(isLong bool, sizeDeltaUsd, sizeDeltaTokens primitives.S) (Market, error) {
	next, err := m.ApplyDeltaToPoolSide(PoolOpenInterest, isLong, sizeDeltaUsd)
	if err != nil {
		return Market{}, err
	}
	return next.ApplyDeltaToPoolSide(PoolOpenInterestInTokens, isLong, sizeDeltaTokens)
}

// CollateralSumUsd reports the collateral-sum pool's value for the given
// position side (same collapsing rationale as OpenInterestUsd).
func (m Market) CollateralSumUsd(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolCollateralSum, isLong)
}

// ApplyDeltaToCollateralSum applies a signed delta to the collateral-sum
// pool for the given position side.
func (m Market) ApplyDeltaToCollateralSum(isLong bool, delta primitives.S) (Market, error) {
	return m.ApplyDeltaToPoolSide(PoolCollateralSum, isLong, delta)
}

// BorrowingFactor reports the market's cumulative borrowing factor for the
// given side (C5).
func (m Market) BorrowingFactor(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolBorrowingFactor, isLong)
}

// WithBorrowingFactor returns a copy of m with the given side's cumulative
// borrowing factor set to value.
func (m Market) WithBorrowingFactor(isLong bool, value primitives.U) (Market, error) {
	p, err := m.PoolOf(PoolBorrowingFactor)
	if err != nil {
		return Market{}, err
	}
	if isLong {
		p.Long = value
	} else {
		p.Short = value
	}
	return m.WithPool(PoolBorrowingFactor, p)
}

// TotalBorrowingUsd reports the side's total-borrowing accounting pool,
// a GMX-style aggregate of size_in_usd * entry_borrowing_factor used for
// host-facing diagnostics (not required to settle any individual position,
// since that is O(1) via the per-position snapshot).
func (m Market) TotalBorrowingUsd(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolTotalBorrowing, isLong)
}

// ApplyDeltaToTotalBorrowing applies a signed delta to the side's
// total-borrowing pool.
func (m Market) ApplyDeltaToTotalBorrowing(isLong bool, delta primitives.S) (Market, error) {
	return m.ApplyDeltaToPoolSide(PoolTotalBorrowing, isLong, delta)
}

// FundingAmountPerSize reports the funding-amount-per-size accumulator for
// the given (payer) position side.
func (m Market) FundingAmountPerSize(isLong bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolFundingAmountPerSize, isLong)
}

// WithFundingAmountPerSize sets the funding-amount-per-size accumulator for
// the given position side.
func (m Market) WithFundingAmountPerSize(isLong bool, value primitives.U) (Market, error) {
	p, err := m.PoolOf(PoolFundingAmountPerSize)
	if err != nil {
		return Market{}, err
	}
	if isLong {
		p.Long = value
	} else {
		p.Short = value
	}
	return m.WithPool(PoolFundingAmountPerSize, p)
}

// ClaimableFundingAmountPerSize reports the claimable-funding-per-size
// accumulator for the given collateral-token side.
func (m Market) ClaimableFundingAmountPerSize(isLongToken bool) (primitives.U, error) {
	return m.PoolSideAmount(PoolClaimableFunding, isLongToken)
}

// WithClaimableFundingAmountPerSize sets the claimable-funding-per-size
// accumulator for the given collateral-token side.
func (m Market) WithClaimableFundingAmountPerSize(isLongToken bool, value primitives.U) (Market, error) {
	p, err := m.PoolOf(PoolClaimableFunding)
	if err != nil {
		return Market{}, err
	}
	if isLongToken {
		p.Long = value
	} else {
		p.Short = value
	}
	return m.WithPool(PoolClaimableFunding, p)
}

// PositionImpactPoolAmount reports the position-impact pool's single
// balance. The pool is modeled as index-token-denominated and single-sided
// (spec.md §4.6's "release... to the liquidity pool (long side)"), so only
// the Long field is ever populated.
func (m Market) PositionImpactPoolAmount() (primitives.U, error) {
	p, err := m.PoolOf(PoolPositionImpact)
	if err != nil {
		return primitives.U{}, err
	}
	return p.Long, nil
}

// ApplyDeltaToPositionImpactPool applies a signed delta to the
// position-impact pool's single balance.
func (m Market) ApplyDeltaToPositionImpactPool(delta primitives.S) (Market, error) {
	p, err := m.PoolOf(PoolPositionImpact)
	if err != nil {
		return Market{}, err
	}
	next, err := p.ApplyDeltaToLongAmount(delta)
	if err != nil {
		return Market{}, err
	}
	return m.WithPool(PoolPositionImpact, next)
}
