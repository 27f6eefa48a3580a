// Package errs provides the core's typed error surface. Every action
// returns plain Go errors wrapping one of the sentinel Kind values below via
// errors.Is, following the teacher's pattern of package-level sentinel
// vars (strategy/errors.go, pkg/implementations/*) generalized with a
// closed Kind enum so a host can switch on failure category per spec.md §7.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a core error for host-side handling. It is a closed,
// string-const enum in the same texture as mechanisms.MechanismType in the
// teacher repo: small, stable, switchable.
type Kind string

const (
	KindEmptySwap                    Kind = "empty_swap"
	KindEmptyDeposit                  Kind = "empty_deposit"
	KindInvalidPrices                 Kind = "invalid_prices"
	KindInvalidPosition                Kind = "invalid_position"
	KindLiquidatable                  Kind = "liquidatable"
	KindNotLiquidatable                Kind = "not_liquidatable"
	KindOverflow                      Kind = "overflow"
	KindUnderflow                     Kind = "underflow"
	KindComputation                   Kind = "computation"
	KindConvert                       Kind = "convert"
	KindDivisionByZero                Kind = "division_by_zero"
	KindInsufficientFundsToPayForCost Kind = "insufficient_funds_to_pay_for_costs"
	KindPoolAmountExceeded             Kind = "pool_amount_exceeded"
	KindMaxPnlExceeded                 Kind = "max_pnl_exceeded"
	KindInsufficientReserve            Kind = "insufficient_reserve"
	KindMaxOpenInterestExceeded        Kind = "max_open_interest_exceeded"
	KindAcceptablePriceViolated        Kind = "acceptable_price_violated"
	KindMissingPoolKind                Kind = "missing_pool_kind"
)

// Step names a waterfall step in the decrease-position collateral
// processor, used by InsufficientFundsToPayForCosts.
type Step string

const (
	StepPnl     Step = "pnl"
	StepImpact  Step = "impact"
	StepFunding Step = "funding"
	StepFees    Step = "fees"
	StepDiff    Step = "diff"
)

// Error is the core's typed error. Context is a short static string naming
// the failing site (spec.md §7); Step is only populated for
// KindInsufficientFundsToPayForCost.
type Error struct {
	Kind    Kind
	Context string
	Step    Step
	wrapped error
}

func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s (step=%s)", e.Kind, e.Context, e.Step)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return string(e.Kind)
}

// Unwrap supports errors.Is/errors.As against the sentinel Kind.
func (e *Error) Unwrap() error { return e.wrapped }

// Is reports whether target is the sentinel error for e.Kind, so callers
// can do errors.Is(err, errs.ErrComputation) etc.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && errors.Is(sentinel, target)
}

var sentinels = map[Kind]error{}

func sentinel(k Kind, msg string) error {
	err := errors.New(msg)
	sentinels[k] = err
	return err
}

var (
	ErrEmptySwap                    = sentinel(KindEmptySwap, "empty swap: token_in_amount must be positive")
	ErrEmptyDeposit                  = sentinel(KindEmptyDeposit, "empty deposit")
	ErrInvalidPrices                 = sentinel(KindInvalidPrices, "invalid prices")
	ErrInvalidPosition                = sentinel(KindInvalidPosition, "invalid position")
	ErrLiquidatable                  = sentinel(KindLiquidatable, "position is liquidatable")
	ErrNotLiquidatable                = sentinel(KindNotLiquidatable, "position is not liquidatable")
	ErrOverflow                      = sentinel(KindOverflow, "overflow")
	ErrUnderflow                     = sentinel(KindUnderflow, "underflow")
	ErrComputation                   = sentinel(KindComputation, "computation error")
	ErrConvert                       = sentinel(KindConvert, "conversion error")
	ErrDivisionByZero                = sentinel(KindDivisionByZero, "division by zero")
	ErrInsufficientFundsToPayForCost = sentinel(KindInsufficientFundsToPayForCost, "insufficient funds to pay for costs")
	ErrPoolAmountExceeded             = sentinel(KindPoolAmountExceeded, "pool amount exceeded")
	ErrMaxPnlExceeded                 = sentinel(KindMaxPnlExceeded, "max pnl factor exceeded")
	ErrInsufficientReserve            = sentinel(KindInsufficientReserve, "insufficient reserve")
	ErrMaxOpenInterestExceeded        = sentinel(KindMaxOpenInterestExceeded, "max open interest exceeded")
	ErrAcceptablePriceViolated        = sentinel(KindAcceptablePriceViolated, "acceptable price violated")
	ErrMissingPoolKind                = sentinel(KindMissingPoolKind, "missing pool kind")
)

// New constructs a plain Error of the given kind with a context string
// naming the failing call site.
func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context, wrapped: sentinels[kind]}
}

// NewStep constructs an InsufficientFundsToPayForCost error for a specific
// waterfall step.
func NewStep(step Step, context string) *Error {
	return &Error{Kind: KindInsufficientFundsToPayForCost, Context: context, Step: step, wrapped: ErrInsufficientFundsToPayForCost}
}

// Computation wraps context with KindComputation, matching spec.md's
// Computation(context) variant for overflow/underflow/pricing failures
// that don't fit a more specific kind.
func Computation(context string) *Error {
	return New(KindComputation, context)
}

// MaxPnl builds a MaxPnlExceeded error naming the exceeded factor kind.
func MaxPnl(factorKind string) *Error {
	return New(KindMaxPnlExceeded, factorKind)
}

// MissingPoolKind builds a MissingPoolKind programming-error for the given
// pool kind name; this must never occur in a well-formed market.
func MissingPoolKind(kind string) *Error {
	return New(KindMissingPoolKind, kind)
}
