package impact

import (
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/primitives"
)

func absDiff(a, b primitives.U) primitives.U {
	if a.GreaterThan(b) {
		d, _ := a.CheckedSub(b)
		return d
	}
	d, _ := b.CheckedSub(a)
	return d
}

// PositionImpactUsd prices the impact of a size change on the given
// position side against the market's aggregate open interest imbalance
// (spec.md §4.6): the open interest pool's long/short split already tracks
// USD directly, so the imbalance is read straight from it rather than
// converted through a token price.
func PositionImpactUsd(mkt market.PositionImpactMarket, isLong bool, sizeDeltaUsd primitives.S) (primitives.S, error) {
	oi, err := mkt.PoolOf(market.PoolOpenInterest)
	if err != nil {
		return primitives.S{}, err
	}

	initialDiff := absDiff(oi.Long, oi.Short)

	nextLong, nextShort := oi.Long.ToSigned(), oi.Short.ToSigned()
	if isLong {
		nextLong = nextLong.Add(sizeDeltaUsd)
	} else {
		nextShort = nextShort.Add(sizeDeltaUsd)
	}
	nextLongU, err := nextLong.ToUnsigned()
	if err != nil {
		return primitives.S{}, err
	}
	nextShortU, err := nextShort.ToUnsigned()
	if err != nil {
		return primitives.S{}, err
	}
	nextDiff := absDiff(nextLongU, nextShortU)

	cfg := mkt.PositionImpactConfig()
	return PriceImpactUsd(initialDiff, nextDiff, cfg.PositiveFactor, cfg.NegativeFactor, cfg.Exponent)
}

// CapPositivePositionImpact lowers a positive position-impact credit twice,
// first against the index-token value the position-impact pool can actually
// pay out, then against a factor of the size change itself (spec.md §4.6).
// A non-positive impact passes through unchanged.
func CapPositivePositionImpact(mkt market.PositionImpactMarket, indexTokenPrice primitives.U, sizeDeltaUsd, impact primitives.S, maxPositiveFactor primitives.U) (primitives.S, error) {
	if !impact.IsPositive() {
		return impact, nil
	}

	poolAmount, err := mkt.PoolOf(market.PoolPositionImpact)
	if err != nil {
		return primitives.S{}, err
	}
	maxByPool, err := poolAmount.Long.CheckedMul(indexTokenPrice)
	if err != nil {
		return primitives.S{}, err
	}
	capped := primitives.MinU(impact.Abs(), maxByPool)

	maxByFactor, err := primitives.ApplyFactor(sizeDeltaUsd.Abs(), maxPositiveFactor, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, err
	}
	capped = primitives.MinU(capped, maxByFactor)

	return capped.ToSigned(), nil
}

// CapNegativePositionImpact floors a negative position-impact charge at a
// factor of the size change, returning the magnitude that was capped off
// (price_impact_diff, spec.md §4.9/§4.11) alongside the capped impact. A
// non-negative impact passes through unchanged with a zero diff.
func CapNegativePositionImpact(sizeDeltaUsd, impact primitives.S, maxNegativeFactor primitives.U) (primitives.S, primitives.U, error) {
	if !impact.IsNegative() {
		return impact, primitives.ZeroU(), nil
	}

	minMagnitude, err := primitives.ApplyFactor(sizeDeltaUsd.Abs(), maxNegativeFactor, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, primitives.U{}, err
	}
	minImpact := minMagnitude.ToSigned().Neg()

	if impact.LessThan(minImpact) {
		diff := minImpact.Sub(impact).Abs()
		return minImpact, diff, nil
	}
	return impact, primitives.ZeroU(), nil
}

// CappedPositionPriceImpact composes PositionImpactUsd with both caps in
// sequence (positive cap, then negative cap), mirroring the reference
// implementation's capped_position_price_impact: both caps are always
// applied, and each is a no-op unless the impact's sign matches it.
func CappedPositionPriceImpact(mkt market.PerpMarket, indexTokenPrice primitives.U, isLong bool, sizeDeltaUsd primitives.S, forLiquidations bool) (primitives.S, primitives.U, error) {
	raw, err := PositionImpactUsd(mkt, isLong, sizeDeltaUsd)
	if err != nil {
		return primitives.S{}, primitives.U{}, err
	}

	cfg := mkt.PositionConfig()
	capped, err := CapPositivePositionImpact(mkt, indexTokenPrice, sizeDeltaUsd, raw, cfg.MaxPositivePositionImpactFactor)
	if err != nil {
		return primitives.S{}, primitives.U{}, err
	}

	maxNegativeFactor := cfg.MaxNegativePositionImpactFactor
	if forLiquidations {
		maxNegativeFactor = cfg.MaxPositionImpactFactorForLiquidations
	}
	capped, diff, err := CapNegativePositionImpact(sizeDeltaUsd, capped, maxNegativeFactor)
	if err != nil {
		return primitives.S{}, primitives.U{}, err
	}

	return capped, diff, nil
}
