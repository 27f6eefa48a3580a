package market

import (
	"github.com/johnayoung/perpcore/funding"
	"github.com/johnayoung/perpcore/primitives"
)

// UpdateFunding advances the market's signed funding rate and both sides'
// funding-amount-per-size accumulators to now (C6, spec.md §4.5): the rate
// steps toward a target derived from open-interest imbalance, then the
// elapsed-time integral of the rate's magnitude is credited to whichever
// side is paying (longs when the rate is positive, shorts when negative).
func UpdateFunding(m Market, now int64) (Market, error) {
	last, err := m.ClockOf(ClockFunding)
	if err != nil {
		return Market{}, err
	}
	elapsed := now - last
	if elapsed <= 0 {
		return m.WithClock(ClockFunding, now)
	}

	cfg := m.FundingConfig()

	longOI, err := m.OpenInterestUsd(true)
	if err != nil {
		return Market{}, err
	}
	shortOI, err := m.OpenInterestUsd(false)
	if err != nil {
		return Market{}, err
	}

	target, err := funding.TargetRatePerSecond(longOI, shortOI, cfg.Factor, cfg.Exponent)
	if err != nil {
		return Market{}, err
	}
	imbalanceRatio, err := funding.ImbalanceRatio(longOI, shortOI)
	if err != nil {
		return Market{}, err
	}

	current := m.FundingFactorPerSecond()
	nextRate, err := funding.NextRatePerSecond(
		current, target,
		imbalanceRatio, cfg.ThresholdForStableFunding, cfg.ThresholdForDecreaseFunding,
		cfg.IncreaseFactorPerSecond, cfg.DecreaseFactorPerSecond,
		elapsed,
		cfg.MinFactorPerSecond, cfg.MaxFactorPerSecond,
	)
	if err != nil {
		return Market{}, err
	}

	next := m.WithFundingFactorPerSecond(nextRate)

	// A positive rate means longs pay shorts; a negative rate the reverse.
	// Only the paying side's accumulator advances (spec.md §4.5's "two
	// pools, one per paying side").
	if nextRate.IsZero() {
		return next.WithClock(ClockFunding, now)
	}
	payerIsLong := nextRate.IsPositive()
	magnitude := nextRate.Abs()

	currentPerSize, err := next.FundingAmountPerSize(payerIsLong)
	if err != nil {
		return Market{}, err
	}
	updatedPerSize, err := funding.NextFundingAmountPerSize(currentPerSize, magnitude, elapsed)
	if err != nil {
		return Market{}, err
	}
	next, err = next.WithFundingAmountPerSize(payerIsLong, updatedPerSize)
	if err != nil {
		return Market{}, err
	}

	// The receiving side accrues a matching claimable-per-size accumulator,
	// denominated in its own collateral token, so positions on that side can
	// settle their funding income in O(1) the same way the payer side
	// settles its cost. The total USD the payer side contributes
	// (magnitude * payerOI) divides across receiverOI, so the receiving
	// side's per-unit claim is scaled by payerOI / receiverOI; the payer is
	// usually the larger side, so the claim is usually scaled up (spec.md
	// §4.5's "the larger side pays less per unit; the smaller side claims
	// more per unit").
	receiverIsLongToken := !payerIsLong
	payerOI, receiverOI := longOI, shortOI
	if !payerIsLong {
		payerOI, receiverOI = shortOI, longOI
	}
	if !receiverOI.IsZero() {
		receiverMagnitude, err := primitives.MulDiv(magnitude, payerOI, receiverOI, primitives.RoundDown)
		if err != nil {
			return Market{}, err
		}
		currentClaimable, err := next.ClaimableFundingAmountPerSize(receiverIsLongToken)
		if err != nil {
			return Market{}, err
		}
		updatedClaimable, err := funding.NextFundingAmountPerSize(currentClaimable, receiverMagnitude, elapsed)
		if err != nil {
			return Market{}, err
		}
		next, err = next.WithClaimableFundingAmountPerSize(receiverIsLongToken, updatedClaimable)
		if err != nil {
			return Market{}, err
		}
	}

	return next.WithClock(ClockFunding, now)
}
