package market

import (
	"github.com/johnayoung/perpcore/borrowing"
	"github.com/johnayoung/perpcore/primitives"
)

// UpdateBorrowing advances the market's cumulative borrowing factor for
// both sides to now (C5, spec.md §4.4): usage is priced against the side's
// reserved open interest over its pool value, a rate is derived from the
// kink model (or the classical model when the side's OptimalUsageFactor is
// zero), and that rate is integrated over the elapsed time since the
// borrowing clock was last touched. A side with SkipBorrowingFeeForSmallerSide
// set and a smaller open interest than the other side is left untouched,
// matching GMX's rule that only the larger side accrues borrowing cost.
func UpdateBorrowing(m Market, prices primitives.Prices, now int64) (Market, error) {
	last, err := m.ClockOf(ClockBorrowing)
	if err != nil {
		return Market{}, err
	}
	elapsed := now - last
	if elapsed <= 0 {
		return m.WithClock(ClockBorrowing, now)
	}

	cfg := m.BorrowingConfig()

	longOI, err := m.OpenInterestUsd(true)
	if err != nil {
		return Market{}, err
	}
	shortOI, err := m.OpenInterestUsd(false)
	if err != nil {
		return Market{}, err
	}

	next := m
	for _, isLong := range []bool{true, false} {
		if cfg.SkipBorrowingFeeForSmallerSide {
			if isLong && longOI.LessThan(shortOI) {
				continue
			}
			if !isLong && shortOI.LessThan(longOI) {
				continue
			}
		}

		reservedUsd, err := next.OpenInterestUsd(isLong)
		if err != nil {
			return Market{}, err
		}
		sidePrice := prices.LongTokenPrice
		if !isLong {
			sidePrice = prices.ShortTokenPrice
		}
		poolValue, err := next.PoolUsdValue(isLong, sidePrice, false)
		if err != nil {
			return Market{}, err
		}

		optimalUsage := cfg.OptimalUsageFactor.Get(isLong)
		var rate primitives.U
		if optimalUsage.IsZero() {
			rate, err = borrowing.ClassicalRatePerSecond(
				cfg.Factor.Get(isLong),
				cfg.Exponent.Get(isLong),
				reservedUsd,
				poolValue,
			)
		} else {
			usage, usageErr := borrowing.UsageFactor(reservedUsd, poolValue)
			if usageErr != nil {
				return Market{}, usageErr
			}
			rate, err = borrowing.RatePerSecond(
				usage,
				optimalUsage,
				cfg.BaseFactor.Get(isLong),
				cfg.AboveOptimalUsageFactor.Get(isLong),
			)
		}
		if err != nil {
			return Market{}, err
		}

		current, err := next.BorrowingFactor(isLong)
		if err != nil {
			return Market{}, err
		}
		updated, err := borrowing.NextCumulativeFactor(current, rate, elapsed)
		if err != nil {
			return Market{}, err
		}
		next, err = next.WithBorrowingFactor(isLong, updated)
		if err != nil {
			return Market{}, err
		}
	}

	return next.WithClock(ClockBorrowing, now)
}
