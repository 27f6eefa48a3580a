// Package borrowing implements the market's cumulative borrowing-factor
// state machine (spec.md C5, §4.4): a per-second rate derived from pool
// usage, integrated over elapsed time into a monotonically increasing
// cumulative factor each position snapshots on open and settles against on
// close.
package borrowing

import (
	"github.com/johnayoung/perpcore/primitives"
)

// UsageFactor computes a side's pool-usage ratio: reserved open interest as
// a fraction of the side's available liquidity, clamped to [0, Unit()] by
// construction since reservedUsd is validated elsewhere to never exceed
// poolUsd.
func UsageFactor(reservedUsd, poolUsd primitives.U) (primitives.U, error) {
	if poolUsd.IsZero() {
		return primitives.ZeroU(), nil
	}
	return primitives.MulDiv(reservedUsd, primitives.Unit(), poolUsd, primitives.RoundDown)
}

// RatePerSecond prices a side's borrowing rate from its usage factor using
// the kink model: a base slope (rate = baseFactor * usage) up to the
// optimal-usage kink and a steeper above-optimal-usage slope beyond it
// (spec.md §4.4):
//
//	usage <= optimal:  rate = baseFactor * usage
//	usage >  optimal:  rate = baseFactor * optimal + aboveOptimalFactor * (usage - optimal)
func RatePerSecond(usageFactor, optimalUsageFactor, baseFactor, aboveOptimalUsageFactor primitives.U) (primitives.U, error) {
	if usageFactor.LessThanOrEqual(optimalUsageFactor) {
		return primitives.ApplyFactor(usageFactor, baseFactor, primitives.RoundDown)
	}

	atOptimal, err := primitives.ApplyFactor(optimalUsageFactor, baseFactor, primitives.RoundDown)
	if err != nil {
		return primitives.U{}, err
	}
	excessUsage, err := usageFactor.CheckedSub(optimalUsageFactor)
	if err != nil {
		return primitives.U{}, err
	}
	excessRate, err := primitives.ApplyFactor(excessUsage, aboveOptimalUsageFactor, primitives.RoundDown)
	if err != nil {
		return primitives.U{}, err
	}
	return atOptimal.CheckedAdd(excessRate)
}

// ClassicalRatePerSecond prices a side's borrowing rate with the non-kink
// model spec.md §4.4 names as the alternative to RatePerSecond: rate =
// factor * reservedUsd^exponent / poolUsd. Used in place of RatePerSecond
// when a side's OptimalUsageFactor is unset (zero), i.e. the market has not
// opted into the kink model for that side. reservedUsd is lifted through
// primitives.Pow the same way a fixed-point factor would be (see
// DESIGN.md's Open Question decision), so exponent values far from Unit()
// (1.0) are only meaningful at the precision Pow's float64 step provides.
func ClassicalRatePerSecond(factor, exponent, reservedUsd, poolUsd primitives.U) (primitives.U, error) {
	if poolUsd.IsZero() {
		return primitives.ZeroU(), nil
	}
	reservedPow := primitives.Pow(reservedUsd, exponent)
	weighted, err := primitives.ApplyFactor(reservedPow, factor, primitives.RoundDown)
	if err != nil {
		return primitives.U{}, err
	}
	return primitives.MulDiv(weighted, primitives.Unit(), poolUsd, primitives.RoundDown)
}

// NextCumulativeFactor integrates ratePerSecond over elapsedSeconds and adds
// it to the market's current cumulative borrowing factor for a side.
func NextCumulativeFactor(currentCumulativeFactor, ratePerSecond primitives.U, elapsedSeconds int64) (primitives.U, error) {
	if elapsedSeconds <= 0 {
		return currentCumulativeFactor, nil
	}
	delta, err := primitives.ApplyFactor(primitives.NewU(elapsedSeconds), ratePerSecond, primitives.RoundDown)
	if err != nil {
		return primitives.U{}, err
	}
	return currentCumulativeFactor.CheckedAdd(delta)
}

// FeeSinceSnapshot settles the borrowing fee owed on sizeInUsd between a
// position's snapshotted cumulative factor and the market's current one:
// fee = sizeInUsd * (currentCumulativeFactor - snapshotFactor).
func FeeSinceSnapshot(sizeInUsd, currentCumulativeFactor, snapshotFactor primitives.U) (primitives.U, error) {
	factorDelta, err := currentCumulativeFactor.CheckedSub(snapshotFactor)
	if err != nil {
		return primitives.U{}, err
	}
	return primitives.ApplyFactor(sizeInUsd, factorDelta, primitives.RoundUp)
}
