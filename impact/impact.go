// Package impact implements the price-impact pricing curve shared by swaps
// and position actions (spec.md C3, §4.3): f(x) = factor * |x|^exponent,
// applied to the before/after imbalance and capped against an impact pool
// when it pays the trader rather than charges them.
package impact

import "github.com/johnayoung/perpcore/primitives"

// applyImpactFactor raises diffUsd to exponent then applies factor, both of
// which are fixed-point reals rather than plain token/usd amounts.
func applyImpactFactor(diffUsd, factor, exponent primitives.U) (primitives.U, error) {
	adjusted := primitives.Pow(diffUsd, exponent)
	return primitives.ApplyFactor(adjusted, factor, primitives.RoundDown)
}

// PriceImpactUsd prices the impact of moving a pool's imbalance from
// initialDiffUsd to nextDiffUsd (both non-negative magnitudes). A move that
// shrinks the imbalance (nextDiffUsd < initialDiffUsd) is priced with
// positiveFactor and returned as a credit; a move that grows it is priced
// with negativeFactor and returned as a charge.
func PriceImpactUsd(initialDiffUsd, nextDiffUsd, positiveFactor, negativeFactor, exponent primitives.U) (primitives.S, error) {
	hasPositiveImpact := nextDiffUsd.LessThan(initialDiffUsd)
	factor := negativeFactor
	if hasPositiveImpact {
		factor = positiveFactor
	}

	initialImpact, err := applyImpactFactor(initialDiffUsd, factor, exponent)
	if err != nil {
		return primitives.S{}, err
	}
	nextImpact, err := applyImpactFactor(nextDiffUsd, factor, exponent)
	if err != nil {
		return primitives.S{}, err
	}

	// f(initial) - f(next) is already positive for a shrinking imbalance and
	// negative for a growing one.
	delta := initialImpact.ToSigned().Sub(nextImpact.ToSigned())
	return delta, nil
}

// AmountWithCap converts a USD impact value into a signed token-amount
// delta at the given price. A charge (negative impactUsd) is never capped;
// a credit (positive impactUsd) is capped at impactPoolAmount since an
// impact pool can never pay out more than it holds.
func AmountWithCap(impactUsd primitives.S, price primitives.U, impactPoolAmount primitives.U) (primitives.S, error) {
	if price.IsZero() {
		return primitives.S{}, primitives.ErrDivByZero
	}
	magnitude, err := primitives.MulDiv(impactUsd.Abs(), primitives.NewU(1), price, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, err
	}
	if impactUsd.IsNegative() {
		return magnitude.ToSigned().Neg(), nil
	}
	if magnitude.GreaterThan(impactPoolAmount) {
		magnitude = impactPoolAmount
	}
	return magnitude.ToSigned(), nil
}

// AmountWithCapAndDiff is AmountWithCap, additionally reporting the
// token-denominated amount that a positive impact credit was capped off by
// (zero when uncapped or the impact was a charge). Callers crediting a
// swap's token_in side need this diff to avoid losing the capped-off value
// (spec.md §4.3 step 4).
func AmountWithCapAndDiff(impactUsd primitives.S, price primitives.U, impactPoolAmount primitives.U) (primitives.S, primitives.U, error) {
	if price.IsZero() {
		return primitives.S{}, primitives.U{}, primitives.ErrDivByZero
	}
	magnitude, err := primitives.MulDiv(impactUsd.Abs(), primitives.NewU(1), price, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, primitives.U{}, err
	}
	if impactUsd.IsNegative() {
		return magnitude.ToSigned().Neg(), primitives.ZeroU(), nil
	}
	if magnitude.GreaterThan(impactPoolAmount) {
		diff, err := magnitude.CheckedSub(impactPoolAmount)
		if err != nil {
			return primitives.S{}, primitives.U{}, err
		}
		return impactPoolAmount.ToSigned(), diff, nil
	}
	return magnitude.ToSigned(), primitives.ZeroU(), nil
}
