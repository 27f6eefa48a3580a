package market

import "github.com/johnayoung/perpcore/impact"

// UpdatePositionImpactDistribution advances the market's position-impact
// pool amortizer to now (C7, spec.md §4.7): a constant per-second amount
// drains from the position-impact pool into the liquidity pool's long side,
// floored so the impact pool never drops below its configured minimum.
func UpdatePositionImpactDistribution(m Market, now int64) (Market, error) {
	last, err := m.ClockOf(ClockPriceImpactDistribution)
	if err != nil {
		return Market{}, err
	}
	elapsed := now - last
	if elapsed <= 0 {
		return m.WithClock(ClockPriceImpactDistribution, now)
	}

	cfg := m.PositionImpactDistributionConfig()
	poolAmount, err := m.PositionImpactPoolAmount()
	if err != nil {
		return Market{}, err
	}

	amount, err := impact.Distribute(poolAmount, elapsed, cfg.DistributeFactor, cfg.MinPositionImpactPoolAmount)
	if err != nil {
		return Market{}, err
	}

	next := m
	if !amount.IsZero() {
		next, err = next.ApplyDeltaToPositionImpactPool(amount.ToSigned().Neg())
		if err != nil {
			return Market{}, err
		}
		next, err = next.ApplyDeltaToPoolSide(PoolLiquidity, true, amount.ToSigned())
		if err != nil {
			return Market{}, err
		}
	}

	return next.WithClock(ClockPriceImpactDistribution, now)
}
