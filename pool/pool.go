// Package pool implements the market's pool primitive: a (long, short)
// amount pair with signed-delta application and the pure-market rewrite
// rule (spec.md C2, §4.2).
package pool

import (
	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/primitives"
)

// Pool is a pair of token amounts keyed by side. In a pure market the short
// side is conceptually unused: writes to it are folded into the long side
// and reads from it return zero. That rewrite is applied by Pool itself
// (via the isPure flag passed to each mutating/reading call) so that
// higher layers never need to special-case pure markets.
type Pool struct {
	Long  primitives.U
	Short primitives.U
}

// Delta is a signed (long, short) change to apply to a Pool. A market
// operation may produce a one-sided delta (e.g. swap impact, only one side
// non-zero) or a both-sided delta (e.g. token-in credit + token-out debit).
type Delta struct {
	Long  primitives.S
	Short primitives.S
}

// LongAmount returns the pool's long-side balance.
func (p Pool) LongAmount() primitives.U { return p.Long }

// ShortAmount returns the pool's short-side balance, or zero if isPure.
func (p Pool) ShortAmount(isPure bool) primitives.U {
	if isPure {
		return primitives.ZeroU()
	}
	return p.Short
}

// ApplyDeltaToLongAmount applies a signed delta to the long side: add with
// overflow check on the positive branch, subtract with underflow check
// (fatal) on the negative branch.
func (p Pool) ApplyDeltaToLongAmount(delta primitives.S) (Pool, error) {
	next, err := applyDelta(p.Long, delta)
	if err != nil {
		return Pool{}, err
	}
	p.Long = next
	return p, nil
}

// ApplyDeltaToShortAmount applies a signed delta to the short side. If
// isPure, the delta is redirected to the long side instead, per the
// pure-market rewrite rule.
func (p Pool) ApplyDeltaToShortAmount(delta primitives.S, isPure bool) (Pool, error) {
	if isPure {
		return p.ApplyDeltaToLongAmount(delta)
	}
	next, err := applyDelta(p.Short, delta)
	if err != nil {
		return Pool{}, err
	}
	p.Short = next
	return p, nil
}

func applyDelta(amount primitives.U, delta primitives.S) (primitives.U, error) {
	if delta.IsNegative() {
		next, err := amount.CheckedSub(delta.Abs())
		if err != nil {
			return primitives.U{}, errs.Computation("pool: underflow applying negative delta")
		}
		return next, nil
	}
	next, err := amount.CheckedAdd(delta.Abs())
	if err != nil {
		return primitives.U{}, errs.Computation("pool: overflow applying positive delta")
	}
	return next, nil
}

// ApplyDelta applies a both-sided Delta to the pool in one step.
func (p Pool) ApplyDelta(d Delta, isPure bool) (Pool, error) {
	next, err := p.ApplyDeltaToLongAmount(d.Long)
	if err != nil {
		return Pool{}, err
	}
	return next.ApplyDeltaToShortAmount(d.Short, isPure)
}

// DeltaWithValues constructs a balance-change record from USD value deltas
// on both sides, converting each to a token-amount delta via the supplied
// unit price. Sign is preserved: a positive USD delta on a side yields a
// positive token delta on that side.
func DeltaWithValues(longValueDelta, shortValueDelta primitives.S, longUnitPrice, shortUnitPrice primitives.U) (Delta, error) {
	longAmount, err := valueToAmount(longValueDelta, longUnitPrice)
	if err != nil {
		return Delta{}, err
	}
	shortAmount, err := valueToAmount(shortValueDelta, shortUnitPrice)
	if err != nil {
		return Delta{}, err
	}
	return Delta{Long: longAmount, Short: shortAmount}, nil
}

func valueToAmount(valueDelta primitives.S, unitPrice primitives.U) (primitives.S, error) {
	if unitPrice.IsZero() {
		return primitives.S{}, errs.Computation("pool: zero unit price in delta_with_values")
	}
	magnitude, err := primitives.MulDiv(valueDelta.Abs(), primitives.NewU(1), unitPrice, primitives.RoundDown)
	if err != nil {
		return primitives.S{}, err
	}
	amount := magnitude.ToSigned()
	if valueDelta.IsNegative() && !amount.IsZero() {
		return amount.Neg(), nil
	}
	return amount, nil
}
