package impact

import (
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/primitives"
)

// ExecutionPrice derives the price at which a position size change actually
// settles from the index token's oracle price and the (already capped)
// price impact priced against that size change (spec.md §4.8 step 3,
// §4.9 step 5): the impact is folded into the index price by scaling it by
// (sizeDeltaUsd + signedImpact) / sizeDeltaUsd, where signedImpact is the
// impact as seen by this position's own side (a long position's execution
// price rises with a positive impact; a short's falls). A zero
// sizeDeltaUsd has no size change to price, so the index price passes
// through unchanged.
func ExecutionPrice(indexTokenPrice, sizeDeltaUsd primitives.U, priceImpactUsd primitives.S, isLong bool) (primitives.U, error) {
	if sizeDeltaUsd.IsZero() {
		return indexTokenPrice, nil
	}
	signedImpact := priceImpactUsd
	if !isLong {
		signedImpact = priceImpactUsd.Neg()
	}
	numerator := sizeDeltaUsd.ToSigned().Add(signedImpact)
	numeratorU, err := numerator.ToUnsigned()
	if err != nil {
		return primitives.U{}, errs.Computation("impact: price impact exceeds size delta in execution price")
	}
	return primitives.MulDiv(indexTokenPrice, numeratorU, sizeDeltaUsd, primitives.RoundDown)
}

// ValidateAcceptablePrice rejects an order whose execution price moved past
// the caller's limit: a long position wants execution at or below its
// acceptable price (it is buying exposure), a short wants at or above
// (it is selling exposure). A nil acceptablePrice means no limit was set.
func ValidateAcceptablePrice(executionPrice primitives.U, acceptablePrice *primitives.U, isLong bool) error {
	if acceptablePrice == nil {
		return nil
	}
	violated := false
	if isLong {
		violated = executionPrice.GreaterThan(*acceptablePrice)
	} else {
		violated = executionPrice.LessThan(*acceptablePrice)
	}
	if violated {
		return errs.New(errs.KindAcceptablePriceViolated, "execution_price")
	}
	return nil
}
