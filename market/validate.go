package market

import (
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/primitives"
)

// ValidatePoolAmount enforces the per-token pool-size ceiling (spec.md
// §4.1 Boundaries.max_pool_amount, §4.7 step 7) against the liquidity
// pool's current balance on the given side.
func (m Market) ValidatePoolAmount(isLong bool) error {
	amount, err := m.PoolSideAmount(PoolLiquidity, isLong)
	if err != nil {
		return err
	}
	max := m.BoundariesConfig().MaxPoolAmountFor(m.TokenFor(isLong))
	if amount.GreaterThan(max) {
		return errs.New(errs.KindPoolAmountExceeded, "max_pool_amount")
	}
	return nil
}

// ValidatePoolUsdValue enforces the per-token USD-value ceiling on deposits
// (spec.md §4.1 Boundaries.max_pool_value_for_deposit), valuing the
// liquidity pool's side at the price's max bound (the conservative,
// largest-possible valuation).
func (m Market) ValidatePoolUsdValue(price primitives.Price, isLong bool) error {
	value, err := m.PoolUsdValue(isLong, price, true)
	if err != nil {
		return err
	}
	max := m.BoundariesConfig().MaxPoolValueForDepositFor(m.TokenFor(isLong))
	if max.IsZero() {
		return nil
	}
	if value.GreaterThan(max) {
		return errs.New(errs.KindPoolAmountExceeded, "max_pool_value_for_deposit")
	}
	return nil
}

// AggregatePnlUsd prices the side's aggregate unrealized PnL across every
// position open on it, derived from the open-interest pools rather than
// iterating positions (the core never holds position lists): long
// positions gain when the index token's token-valued OI exceeds its
// USD-valued OI; short positions gain the opposite way.
func (m Market) AggregatePnlUsd(indexTokenPrice primitives.U, isLong bool) (primitives.S, error) {
	oiTokens, err := m.OpenInterestInTokens(isLong)
	if err != nil {
		return primitives.S{}, err
	}
	oiUsd, err := m.OpenInterestUsd(isLong)
	if err != nil {
		return primitives.S{}, err
	}
	tokenValue, err := oiTokens.CheckedMul(indexTokenPrice)
	if err != nil {
		return primitives.S{}, err
	}
	if isLong {
		return tokenValue.ToSigned().Sub(oiUsd.ToSigned()), nil
	}
	return oiUsd.ToSigned().Sub(tokenValue.ToSigned()), nil
}

// ValidateMaxPnl enforces one of the four {deposit,withdrawal,trader,adl} x
// {long,short} max-pnl-factor caps (spec.md §4.1 Reserves): the side's
// aggregate unrealized profit, as a fraction of its pool value, must not
// exceed the configured factor. A non-positive aggregate PnL (traders net
// underwater) always passes.
func (m Market) ValidateMaxPnl(indexTokenPrice primitives.U, poolPrice primitives.Price, kind PnlFactorKind, isLong bool) error {
	pnl, err := m.AggregatePnlUsd(indexTokenPrice, isLong)
	if err != nil {
		return err
	}
	if !pnl.IsPositive() {
		return nil
	}
	poolValue, err := m.PoolUsdValue(isLong, poolPrice, true)
	if err != nil {
		return err
	}
	if poolValue.IsZero() {
		return errs.MaxPnl(string(kind))
	}
	factor, err := primitives.MulDiv(pnl.Abs(), primitives.Unit(), poolValue, primitives.RoundDown)
	if err != nil {
		return err
	}
	maxFactor := m.ReservesConfig().MaxPnlFactorFor(kind, isLong)
	if factor.GreaterThan(maxFactor) {
		return errs.MaxPnl(string(kind))
	}
	return nil
}

// ValidateReserve enforces that the side's reserved value (its open
// interest) never exceeds reserve_factor of its pool value (spec.md §4.1
// Reserves.reserve_factor, §4.7 step 7's "reserve invariant... on the
// out-side").
func (m Market) ValidateReserve(poolPrice primitives.Price, isLong bool) error {
	reservedUsd, err := m.OpenInterestUsd(isLong)
	if err != nil {
		return err
	}
	poolValue, err := m.PoolUsdValue(isLong, poolPrice, false)
	if err != nil {
		return err
	}
	maxReserved, err := primitives.ApplyFactor(poolValue, m.ReservesConfig().ReserveFactor, primitives.RoundDown)
	if err != nil {
		return err
	}
	if reservedUsd.GreaterThan(maxReserved) {
		return errs.New(errs.KindInsufficientReserve, "reserve_factor")
	}
	return nil
}

// ValidateOpenInterestReserve mirrors ValidateReserve against the
// open-interest-specific reserve factor, which governs how much of the
// pool can back new position size independent of the general reserve
// factor (spec.md §4.1 Reserves.open_interest_reserve_factor).
func (m Market) ValidateOpenInterestReserve(poolPrice primitives.Price, isLong bool) error {
	if m.Config.IgnoreOpenInterestForUsageFactor {
		return nil
	}
	reservedUsd, err := m.OpenInterestUsd(isLong)
	if err != nil {
		return err
	}
	poolValue, err := m.PoolUsdValue(isLong, poolPrice, false)
	if err != nil {
		return err
	}
	maxReserved, err := primitives.ApplyFactor(poolValue, m.ReservesConfig().OpenInterestReserveFactor, primitives.RoundDown)
	if err != nil {
		return err
	}
	if reservedUsd.GreaterThan(maxReserved) {
		return errs.New(errs.KindInsufficientReserve, "open_interest_reserve_factor")
	}
	return nil
}

// ValidateMaxOpenInterest enforces the side's absolute open-interest
// ceiling (spec.md §4.1 Boundaries.max_open_interest).
func (m Market) ValidateMaxOpenInterest(isLong bool) error {
	oiUsd, err := m.OpenInterestUsd(isLong)
	if err != nil {
		return err
	}
	max := m.BoundariesConfig().MaxOpenInterest.Get(isLong)
	if oiUsd.GreaterThan(max) {
		return errs.New(errs.KindMaxOpenInterestExceeded, "max_open_interest")
	}
	return nil
}
