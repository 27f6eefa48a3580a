// Package collateral implements the decrease-position collateral waterfall
// (C10, spec.md §4.10): an ordered sequence of credits and costs applied
// against a position's output amount, then its remaining collateral, then a
// secondary output token, with an opt-in "insolvent close" escape hatch that
// swallows the first cost the waterfall cannot fully collect.
package collateral

import (
	"errors"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/fees"
	"github.com/johnayoung/perpcore/market"
	"github.com/johnayoung/perpcore/primitives"
)

// ClaimableCollateral tracks amounts routed to a claimable balance rather
// than paid out directly, bucketed by market side (spec.md §4.10's
// `ClaimableCollateral{amount_for_long, amount_for_short}`).
type ClaimableCollateral struct {
	AmountForLong  primitives.U
	AmountForShort primitives.U
}

// TryAddAmount credits amount to the side's bucket.
func (c ClaimableCollateral) TryAddAmount(isLong bool, amount primitives.U) (ClaimableCollateral, error) {
	next := c
	var err error
	if isLong {
		next.AmountForLong, err = c.AmountForLong.CheckedAdd(amount)
	} else {
		next.AmountForShort, err = c.AmountForShort.CheckedAdd(amount)
	}
	return next, err
}

// Processor holds the market and prices a decrease settles against, plus
// the waterfall's running state: how much of the position's output has
// been assembled so far, and how much collateral remains untapped.
type Processor struct {
	Market market.Market
	Prices primitives.Prices

	// IsOutputTokenLong reports whether the position's primary output token
	// (its collateral token) is the market's long token.
	IsOutputTokenLong bool
	// IsPnlTokenLong reports whether the position's PnL token (the token its
	// profit/loss realizes in, i.e. the index token's long/short side) is
	// the market's long token. This is the position's own side (IsLong).
	IsPnlTokenLong bool
	// ArePnlAndCollateralTokensTheSame reports whether the PnL and output
	// tokens coincide, in which case PnL/impact credits land directly in
	// OutputAmount instead of SecondaryOutputAmount.
	ArePnlAndCollateralTokensTheSame bool
	// IsInsolventCloseAllowed permits Process to swallow the first cost the
	// waterfall cannot fully collect rather than failing the whole decrease.
	IsInsolventCloseAllowed bool

	OutputAmount              primitives.U
	SecondaryOutputAmount     primitives.U
	RemainingCollateralAmount primitives.U
	ForHolding                ClaimableCollateral
	ForUser                   ClaimableCollateral

	// InsolventCloseStep records which waterfall step's cost was swallowed,
	// or errs.Step("") if the close was fully solvent.
	InsolventCloseStep errs.Step
}

// New constructs a Processor seeded with the position's current collateral
// balance as RemainingCollateralAmount and nothing yet assembled.
func New(mkt market.Market, prices primitives.Prices, isOutputTokenLong, isPnlTokenLong bool, collateralAmount primitives.U, isInsolventCloseAllowed bool) Processor {
	return Processor{
		Market:                           mkt,
		Prices:                           prices,
		IsOutputTokenLong:                isOutputTokenLong,
		IsPnlTokenLong:                   isPnlTokenLong,
		ArePnlAndCollateralTokensTheSame: isOutputTokenLong == isPnlTokenLong,
		IsInsolventCloseAllowed:          isInsolventCloseAllowed,
		RemainingCollateralAmount:        collateralAmount,
	}
}

func (p Processor) outputTokenPrice() primitives.U {
	return p.Prices.CollateralPrice(p.IsOutputTokenLong).Pick(false)
}

func (p Processor) secondaryTokenPrice() primitives.U {
	return p.Prices.CollateralPrice(!p.IsOutputTokenLong).Pick(false)
}

func (p Processor) pnlTokenPrice() primitives.U {
	return p.Prices.CollateralPrice(p.IsPnlTokenLong).Pick(false)
}

func (p Processor) creditOutputOrSecondary(amount primitives.U) (Processor, error) {
	next := p
	var err error
	if p.ArePnlAndCollateralTokensTheSame {
		next.OutputAmount, err = p.OutputAmount.CheckedAdd(amount)
	} else {
		next.SecondaryOutputAmount, err = p.SecondaryOutputAmount.CheckedAdd(amount)
	}
	return next, err
}

// AddPnlIfPositive credits a position's realized profit into the waterfall's
// output, debiting the market's liquidity pool on the PnL-token side
// (spec.md §4.10 step a). A non-positive pnl is a no-op.
func (p Processor) AddPnlIfPositive(pnl primitives.S) (Processor, error) {
	if !pnl.IsPositive() {
		return p, nil
	}
	price := p.pnlTokenPrice()
	if price.IsZero() {
		return Processor{}, primitives.ErrDivByZero
	}
	amount, err := primitives.MulDiv(pnl.Abs(), primitives.NewU(1), price, primitives.RoundDown)
	if err != nil {
		return Processor{}, err
	}

	next := p
	next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolLiquidity, p.IsPnlTokenLong, amount.ToSigned().Neg())
	if err != nil {
		return Processor{}, err
	}
	return next.creditOutputOrSecondary(amount)
}

// AddPriceImpactIfPositive credits a position's positive price impact into
// the waterfall's output, draining the position-impact pool by the
// index-token-denominated amount and the liquidity pool by the
// PnL-token-denominated amount (spec.md §4.10 step b). A non-positive
// impact is a no-op.
func (p Processor) AddPriceImpactIfPositive(priceImpact primitives.S) (Processor, error) {
	if !priceImpact.IsPositive() {
		return p, nil
	}
	indexPrice := p.Prices.IndexTokenPrice.Pick(false)
	if indexPrice.IsZero() {
		return Processor{}, primitives.ErrDivByZero
	}
	indexAmount, err := primitives.MulDiv(priceImpact.Abs(), primitives.NewU(1), indexPrice, primitives.RoundUp)
	if err != nil {
		return Processor{}, err
	}

	next := p
	next.Market, err = next.Market.ApplyDeltaToPositionImpactPool(indexAmount.ToSigned().Neg())
	if err != nil {
		return Processor{}, err
	}

	pnlPrice := p.pnlTokenPrice()
	if pnlPrice.IsZero() {
		return Processor{}, primitives.ErrDivByZero
	}
	amount, err := primitives.MulDiv(priceImpact.Abs(), primitives.NewU(1), pnlPrice, primitives.RoundDown)
	if err != nil {
		return Processor{}, err
	}
	next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolLiquidity, p.IsPnlTokenLong, amount.ToSigned().Neg())
	if err != nil {
		return Processor{}, err
	}
	return next.creditOutputOrSecondary(amount)
}

// paymentResult reports how doPayForCost tapped the waterfall's three
// funding sources, and any cost that remains unpaid (in USD).
type paymentResult struct {
	PaidInCollateral primitives.U
	PaidInSecondary  primitives.U
	RemainingCostUsd primitives.U
}

// doPayForCost taps, in order, OutputAmount, RemainingCollateralAmount, and
// SecondaryOutputAmount to cover costUsd, converting between token units
// via the processor's recorded prices at each step (spec.md §4.10's
// waterfall ordering).
func (p Processor) doPayForCost(costUsd primitives.U) (Processor, paymentResult, error) {
	outputPrice := p.outputTokenPrice()
	if outputPrice.IsZero() {
		return Processor{}, paymentResult{}, primitives.ErrDivByZero
	}
	costAmount, err := primitives.MulDiv(costUsd, primitives.NewU(1), outputPrice, primitives.RoundUp)
	if err != nil {
		return Processor{}, paymentResult{}, err
	}

	next := p
	paidCollateral := primitives.MinU(costAmount, next.OutputAmount)
	next.OutputAmount, err = next.OutputAmount.CheckedSub(paidCollateral)
	if err != nil {
		return Processor{}, paymentResult{}, err
	}
	remaining, err := costAmount.CheckedSub(paidCollateral)
	if err != nil {
		return Processor{}, paymentResult{}, err
	}

	if !remaining.IsZero() {
		fromRemaining := primitives.MinU(remaining, next.RemainingCollateralAmount)
		next.RemainingCollateralAmount, err = next.RemainingCollateralAmount.CheckedSub(fromRemaining)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
		paidCollateral, err = paidCollateral.CheckedAdd(fromRemaining)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
		remaining, err = remaining.CheckedSub(fromRemaining)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
	}

	paidSecondary := primitives.ZeroU()
	remainingCostUsd := primitives.ZeroU()
	if !remaining.IsZero() {
		secondaryPrice := p.secondaryTokenPrice()
		if secondaryPrice.IsZero() {
			return Processor{}, paymentResult{}, primitives.ErrDivByZero
		}
		remainingInSecondary, err := primitives.MulDiv(remaining, outputPrice, secondaryPrice, primitives.RoundUp)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
		paidSecondary = primitives.MinU(remainingInSecondary, next.SecondaryOutputAmount)
		next.SecondaryOutputAmount, err = next.SecondaryOutputAmount.CheckedSub(paidSecondary)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
		unpaidInSecondary, err := remainingInSecondary.CheckedSub(paidSecondary)
		if err != nil {
			return Processor{}, paymentResult{}, err
		}
		if !unpaidInSecondary.IsZero() {
			remainingCostUsd, err = unpaidInSecondary.CheckedMul(secondaryPrice)
			if err != nil {
				return Processor{}, paymentResult{}, err
			}
		}
	}

	return next, paymentResult{PaidInCollateral: paidCollateral, PaidInSecondary: paidSecondary, RemainingCostUsd: remainingCostUsd}, nil
}

// payForCost runs doPayForCost, lets receive route the amounts it collected,
// and fails with an InsufficientFundsToPayForCost error tagged with step if
// any of costUsd went unpaid.
func (p Processor) payForCost(costUsd primitives.U, step errs.Step, receive func(Processor, paymentResult) (Processor, error)) (Processor, error) {
	next, result, err := p.doPayForCost(costUsd)
	if err != nil {
		return Processor{}, err
	}
	next, err = receive(next, result)
	if err != nil {
		return Processor{}, err
	}
	if !result.RemainingCostUsd.IsZero() {
		return next, errs.NewStep(step, "collateral waterfall could not fully collect cost")
	}
	return next, nil
}

// PayToPrimaryPool credits the market's liquidity pool with collected
// output-token and secondary-output-token amounts.
func (p Processor) PayToPrimaryPool(paidInCollateral, paidInSecondary primitives.U) (Processor, error) {
	next := p
	var err error
	next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolLiquidity, p.IsOutputTokenLong, paidInCollateral.ToSigned())
	if err != nil {
		return Processor{}, err
	}
	next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolLiquidity, p.IsPnlTokenLong, paidInSecondary.ToSigned())
	if err != nil {
		return Processor{}, err
	}
	return next, nil
}

// PayForFundingFees settles the position's owed funding fee (already
// collateral-token-denominated), routing any amount collected from the
// secondary token into ForHolding (spec.md §4.10 step c).
func (p Processor) PayForFundingFees(owed fees.FundingFees) (Processor, error) {
	if owed.Amount.IsZero() {
		return p, nil
	}
	outputPrice := p.outputTokenPrice()
	costUsd, err := owed.Amount.CheckedMul(outputPrice)
	if err != nil {
		return Processor{}, err
	}
	return p.payForCost(costUsd, errs.StepFunding, func(pr Processor, res paymentResult) (Processor, error) {
		next := pr
		var err error
		next.ForHolding, err = next.ForHolding.TryAddAmount(!pr.IsOutputTokenLong, res.PaidInSecondary)
		return next, err
	})
}

// PayForPnlIfNegative settles a position's realized loss against the
// waterfall, crediting whatever is collected back to the liquidity pool
// (spec.md §4.10 step d). A non-negative pnl is a no-op.
func (p Processor) PayForPnlIfNegative(pnl primitives.S) (Processor, error) {
	if !pnl.IsNegative() {
		return p, nil
	}
	return p.payForCost(pnl.Abs(), errs.StepPnl, func(pr Processor, res paymentResult) (Processor, error) {
		return pr.PayToPrimaryPool(res.PaidInCollateral, res.PaidInSecondary)
	})
}

// PayForFeesExcludingFunding settles every order/borrowing cost except
// funding (spec.md §4.10 step e). On a fully solvent payment made without
// tapping the secondary token, the fee splits directly to the liquidity and
// claimable-fee pools; otherwise the collected amount is routed back to the
// primary pool and the fee record is cleared (a simplified accounting for
// the insolvent case, matching the reference implementation). Returns the
// (possibly cleared) fee record alongside the updated processor.
func (p Processor) PayForFeesExcludingFunding(f fees.PositionFees) (Processor, fees.PositionFees, error) {
	costAmount, err := f.TotalCostExcludingFunding()
	if err != nil {
		return Processor{}, fees.PositionFees{}, err
	}
	if costAmount.IsZero() {
		return p, f, nil
	}
	outputPrice := p.outputTokenPrice()
	costUsd, err := costAmount.CheckedMul(outputPrice)
	if err != nil {
		return Processor{}, fees.PositionFees{}, err
	}

	updated := f
	next, err := p.payForCost(costUsd, errs.StepFees, func(pr Processor, res paymentResult) (Processor, error) {
		if res.RemainingCostUsd.IsZero() && res.PaidInSecondary.IsZero() {
			forPool, err := f.ForPool()
			if err != nil {
				return Processor{}, err
			}
			forReceiver, err := f.ForReceiver()
			if err != nil {
				return Processor{}, err
			}
			next := pr
			next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolLiquidity, pr.IsOutputTokenLong, forPool.ToSigned())
			if err != nil {
				return Processor{}, err
			}
			next.Market, err = next.Market.ApplyDeltaToPoolSide(market.PoolClaimableFee, pr.IsOutputTokenLong, forReceiver.ToSigned())
			if err != nil {
				return Processor{}, err
			}
			return next, nil
		}
		next, err := pr.PayToPrimaryPool(res.PaidInCollateral, res.PaidInSecondary)
		if err != nil {
			return Processor{}, err
		}
		updated = updated.ClearFeesExcludingFunding()
		return next, nil
	})
	return next, updated, err
}

// PayForPriceImpactIfNegative settles a position's negative (capped) price
// impact, crediting whatever is collected back to the liquidity pool and
// restoring a matching index-token-denominated amount to the position-impact
// pool (spec.md §4.10 step f). A non-negative impact is a no-op.
func (p Processor) PayForPriceImpactIfNegative(priceImpact primitives.S) (Processor, error) {
	if !priceImpact.IsNegative() {
		return p, nil
	}
	return p.payForCost(priceImpact.Abs(), errs.StepImpact, func(pr Processor, res paymentResult) (Processor, error) {
		next, err := pr.PayToPrimaryPool(res.PaidInCollateral, res.PaidInSecondary)
		if err != nil {
			return Processor{}, err
		}
		indexPrice := next.Prices.IndexTokenPrice.Pick(true)
		if indexPrice.IsZero() {
			return Processor{}, primitives.ErrDivByZero
		}
		outputPrice := next.outputTokenPrice()
		if !res.PaidInCollateral.IsZero() {
			credit, err := primitives.MulDiv(res.PaidInCollateral, outputPrice, indexPrice, primitives.RoundDown)
			if err != nil {
				return Processor{}, err
			}
			next.Market, err = next.Market.ApplyDeltaToPositionImpactPool(credit.ToSigned())
			if err != nil {
				return Processor{}, err
			}
		}
		if !res.PaidInSecondary.IsZero() {
			secondaryPrice := next.secondaryTokenPrice()
			credit, err := primitives.MulDiv(res.PaidInSecondary, secondaryPrice, indexPrice, primitives.RoundDown)
			if err != nil {
				return Processor{}, err
			}
			next.Market, err = next.Market.ApplyDeltaToPositionImpactPool(credit.ToSigned())
			if err != nil {
				return Processor{}, err
			}
		}
		return next, nil
	})
}

// PayForPriceImpactDiff settles the magnitude a negative price impact was
// capped by, routing whatever is collected to the user's claimable balance
// rather than the pool (spec.md §4.10 step g): the position is compensated
// later for the capped-off amount instead of losing it outright.
func (p Processor) PayForPriceImpactDiff(diff primitives.U) (Processor, error) {
	if diff.IsZero() {
		return p, nil
	}
	return p.payForCost(diff, errs.StepDiff, func(pr Processor, res paymentResult) (Processor, error) {
		next := pr
		var err error
		next.ForUser, err = next.ForUser.TryAddAmount(pr.IsOutputTokenLong, res.PaidInCollateral)
		if err != nil {
			return Processor{}, err
		}
		next.ForUser, err = next.ForUser.TryAddAmount(!pr.IsOutputTokenLong, res.PaidInSecondary)
		if err != nil {
			return Processor{}, err
		}
		return next, nil
	})
}

// Process runs f, the ordered a-g waterfall, against p. If f fails with an
// InsufficientFundsToPayForCost error and p.IsInsolventCloseAllowed, the
// error is swallowed and the step it occurred at is recorded on the
// returned Processor instead of propagating; any other error propagates.
func (p Processor) Process(f func(Processor) (Processor, error)) (Processor, error) {
	next, err := f(p)
	if err == nil {
		return next, nil
	}
	var coreErr *errs.Error
	if errors.As(err, &coreErr) && coreErr.Kind == errs.KindInsufficientFundsToPayForCost && p.IsInsolventCloseAllowed {
		result := next
		result.InsolventCloseStep = coreErr.Step
		return result, nil
	}
	return Processor{}, err
}
