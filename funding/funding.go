// Package funding implements the market's signed per-second funding rate
// and its per-size bookkeeping (spec.md C6, §4.5). The rate adjusts toward
// a target derived from open-interest imbalance; each side's
// funding-amount-per-size accumulator integrates that rate over elapsed
// time so a position can settle in O(1) via UnpackToFundingFee regardless
// of how long it has been open.
package funding

import "github.com/johnayoung/perpcore/primitives"

// ImbalanceRatio reports the open-interest imbalance between the two sides
// as a fixed-point fraction of their combined size (spec.md §4.5's
// threshold comparisons are expressed against this ratio, not the raw
// target rate).
func ImbalanceRatio(longOpenInterestUsd, shortOpenInterestUsd primitives.U) (primitives.U, error) {
	total, err := longOpenInterestUsd.CheckedAdd(shortOpenInterestUsd)
	if err != nil {
		return primitives.U{}, err
	}
	if total.IsZero() {
		return primitives.ZeroU(), nil
	}
	var diff primitives.U
	if longOpenInterestUsd.GreaterThan(shortOpenInterestUsd) {
		diff, err = longOpenInterestUsd.CheckedSub(shortOpenInterestUsd)
	} else {
		diff, err = shortOpenInterestUsd.CheckedSub(longOpenInterestUsd)
	}
	if err != nil {
		return primitives.U{}, err
	}
	return primitives.MulDiv(diff, primitives.Unit(), total, primitives.RoundDown)
}

// TargetRatePerSecond prices the funding rate the market would charge if it
// jumped straight to equilibrium: magnitude grows with the open-interest
// imbalance ratio raised to exponent and scaled by factor; sign follows
// whichever side holds the larger open interest (that side pays).
func TargetRatePerSecond(longOpenInterestUsd, shortOpenInterestUsd, factor, exponent primitives.U) (primitives.S, error) {
	longPays := longOpenInterestUsd.GreaterThan(shortOpenInterestUsd)
	ratio, err := ImbalanceRatio(longOpenInterestUsd, shortOpenInterestUsd)
	if err != nil {
		return primitives.S{}, err
	}
	if ratio.IsZero() {
		return primitives.ZeroS(), nil
	}

	adjusted := primitives.Pow(ratio, exponent)
	magnitude, err := primitives.ApplyFactor(adjusted, factor, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, err
	}

	signed := magnitude.ToSigned()
	if longPays {
		return signed, nil
	}
	return signed.Neg(), nil
}

// NextRatePerSecond steps the current signed rate toward target, gated by
// where imbalanceRatio falls relative to the market's two thresholds
// (spec.md §4.5): above thresholdForStableFunding the magnitude grows (at
// most increaseFactorPerSecond*elapsedSeconds) toward target; below
// thresholdForDecreaseFunding it shrinks (at most
// decreaseFactorPerSecond*elapsedSeconds) toward zero; in between, the rate
// holds steady. The result's magnitude is then clamped to
// [minFactorPerSecond, maxFactorPerSecond], keeping its sign; a zero rate
// stays zero.
func NextRatePerSecond(current, target primitives.S, imbalanceRatio, thresholdForStableFunding, thresholdForDecreaseFunding, increaseFactorPerSecond, decreaseFactorPerSecond primitives.U, elapsedSeconds int64, minFactorPerSecond, maxFactorPerSecond primitives.U) (primitives.S, error) {
	if elapsedSeconds <= 0 {
		return current, nil
	}

	var next primitives.S
	switch {
	case imbalanceRatio.GreaterThan(thresholdForStableFunding):
		maxMove, err := primitives.ApplyFactor(primitives.NewU(elapsedSeconds), increaseFactorPerSecond, primitives.RoundDown)
		if err != nil {
			return primitives.S{}, err
		}
		diff := target.Sub(current)
		if diff.Abs().GreaterThan(maxMove) {
			if diff.IsNegative() {
				next = current.Sub(maxMove.ToSigned())
			} else {
				next = current.Add(maxMove.ToSigned())
			}
		} else {
			next = target
		}
	case imbalanceRatio.LessThan(thresholdForDecreaseFunding):
		maxMove, err := primitives.ApplyFactor(primitives.NewU(elapsedSeconds), decreaseFactorPerSecond, primitives.RoundDown)
		if err != nil {
			return primitives.S{}, err
		}
		if current.Abs().LessThanOrEqual(maxMove) {
			next = primitives.ZeroS()
		} else if current.IsNegative() {
			next = current.Add(maxMove.ToSigned())
		} else {
			next = current.Sub(maxMove.ToSigned())
		}
	default:
		next = current
	}

	if next.Abs().GreaterThan(maxFactorPerSecond) {
		if next.IsNegative() {
			return maxFactorPerSecond.ToSigned().Neg(), nil
		}
		return maxFactorPerSecond.ToSigned(), nil
	}
	if !next.IsZero() && next.Abs().LessThan(minFactorPerSecond) {
		if next.IsNegative() {
			return minFactorPerSecond.ToSigned().Neg(), nil
		}
		return minFactorPerSecond.ToSigned(), nil
	}
	return next, nil
}

// NextFundingAmountPerSize integrates ratePerSecond's magnitude over
// elapsedSeconds into a side's cumulative per-size accumulator.
func NextFundingAmountPerSize(current, ratePerSecond primitives.U, elapsedSeconds int64) (primitives.U, error) {
	if elapsedSeconds <= 0 {
		return current, nil
	}
	delta, err := primitives.ApplyFactor(primitives.NewU(elapsedSeconds), ratePerSecond, primitives.RoundUp)
	if err != nil {
		return primitives.U{}, err
	}
	return current.CheckedAdd(delta)
}

// UnpackToFundingFee settles the funding fee owed on sizeInUsd between a
// position's snapshotted per-size accumulator and the market's current one,
// rounded up since this is a cost charged to the position.
func UnpackToFundingFee(sizeInUsd, currentFundingAmountPerSize, snapshotFundingAmountPerSize primitives.U) (primitives.U, error) {
	delta, err := currentFundingAmountPerSize.CheckedSub(snapshotFundingAmountPerSize)
	if err != nil {
		return primitives.U{}, err
	}
	return primitives.ApplyFactor(sizeInUsd, delta, primitives.RoundUp)
}

// UnpackToClaimableFundingFee settles the funding income owed to a position
// from a claimable-funding-per-size accumulator, rounded down since this is
// an amount paid out to the position rather than charged to it.
func UnpackToClaimableFundingFee(sizeInUsd, currentClaimableFundingAmountPerSize, snapshotClaimableFundingAmountPerSize primitives.U) (primitives.U, error) {
	delta, err := currentClaimableFundingAmountPerSize.CheckedSub(snapshotClaimableFundingAmountPerSize)
	if err != nil {
		return primitives.U{}, err
	}
	return primitives.ApplyFactor(sizeInUsd, delta, primitives.RoundDown)
}
