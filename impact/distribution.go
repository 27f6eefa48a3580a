package impact

import "github.com/johnayoung/perpcore/primitives"

// Distribute computes how much of a position-impact pool should drain into
// the liquidity pool over an elapsed interval (C7, spec.md §4.7): a
// constant per-second rate, capped so the pool never drains below
// minPositionImpactPoolAmount and never distributes more than the pool
// currently holds. It returns the amount to move and does not itself touch
// either pool; callers apply the two deltas atomically.
func Distribute(impactPoolAmount primitives.U, elapsedSeconds int64, distributeFactorPerSecond, minPositionImpactPoolAmount primitives.U) (primitives.U, error) {
	if elapsedSeconds <= 0 || impactPoolAmount.LessThanOrEqual(minPositionImpactPoolAmount) {
		return primitives.ZeroU(), nil
	}

	maxDistributable, err := impactPoolAmount.CheckedSub(minPositionImpactPoolAmount)
	if err != nil {
		return primitives.ZeroU(), err
	}

	elapsed := primitives.NewU(elapsedSeconds)
	wanted, err := primitives.ApplyFactor(elapsed, distributeFactorPerSecond, primitives.RoundDown)
	if err != nil {
		return primitives.ZeroU(), err
	}

	if wanted.GreaterThan(maxDistributable) {
		return maxDistributable, nil
	}
	return wanted, nil
}
