// Package market implements the core's value-type Market (spec.md §3/§4,
// §9): a closed set of typed pools and clocks plus grouped configuration,
// exposed through small capability interfaces rather than a single deep
// trait hierarchy. Every mutating method returns a new Market; there are no
// back-pointers between a Market and the Position values traded against it.
package market

import (
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/errs"
	"github.com/johnayoung/perpcore/pool"
	"github.com/johnayoung/perpcore/primitives"
)

type otherState struct {
	longTokenBalance       primitives.U
	shortTokenBalance      primitives.U
	fundingFactorPerSecond primitives.S
	tradeCount             uint64
}

// Market is the engine's value type: everything an action needs to price a
// swap or position lives here or in the Position/Prices values passed
// alongside it.
type Market struct {
	Meta   Meta
	Config Config
	Flags  Flags

	pools  map[PoolKind]pool.Pool
	clocks map[ClockKind]int64
	other  otherState
}

// New builds a well-formed Market: every PoolKind and ClockKind is present
// (zeroed), satisfying the totality Pool/Clock rely on.
func New(meta Meta, cfg Config, flags Flags) Market {
	pools := make(map[PoolKind]pool.Pool, len(allPoolKinds))
	for _, k := range allPoolKinds {
		pools[k] = pool.Pool{}
	}
	clocks := make(map[ClockKind]int64, len(allClockKinds))
	for _, k := range allClockKinds {
		clocks[k] = 0
	}
	return Market{
		Meta:   meta,
		Config: cfg,
		Flags:  flags,
		pools:  pools,
		clocks: clocks,
	}
}

func (m Market) clonePools() map[PoolKind]pool.Pool {
	next := make(map[PoolKind]pool.Pool, len(m.pools))
	for k, v := range m.pools {
		next[k] = v
	}
	return next
}

func (m Market) cloneClocks() map[ClockKind]int64 {
	next := make(map[ClockKind]int64, len(m.clocks))
	for k, v := range m.clocks {
		next[k] = v
	}
	return next
}

// MetaOf satisfies BaseMarket.
func (m Market) MetaOf() Meta { return m.Meta }

// IsPure reports whether the market's long/short tokens coincide.
func (m Market) IsPure() bool { return m.Meta.IsPure() || m.Flags.Pure }

// PoolOf returns the pool for kind. Every PoolKind constructed via New is
// present; a miss indicates a Market built by hand rather than via New.
func (m Market) PoolOf(kind PoolKind) (pool.Pool, error) {
	p, ok := m.pools[kind]
	if !ok {
		return pool.Pool{}, errs.MissingPoolKind(string(kind))
	}
	return p, nil
}

// WithPool returns a copy of m with kind's pool replaced by p.
func (m Market) WithPool(kind PoolKind, p pool.Pool) (Market, error) {
	if _, ok := m.pools[kind]; !ok {
		return Market{}, errs.MissingPoolKind(string(kind))
	}
	next := m
	next.pools = m.clonePools()
	next.pools[kind] = p
	return next, nil
}

// ClockOf returns the last-update timestamp for kind.
func (m Market) ClockOf(kind ClockKind) (int64, error) {
	ts, ok := m.clocks[kind]
	if !ok {
		return 0, errs.MissingPoolKind(string(kind))
	}
	return ts, nil
}

// WithClock returns a copy of m with kind's clock set to ts.
func (m Market) WithClock(kind ClockKind, ts int64) (Market, error) {
	if _, ok := m.clocks[kind]; !ok {
		return Market{}, errs.MissingPoolKind(string(kind))
	}
	next := m
	next.clocks = m.cloneClocks()
	next.clocks[kind] = ts
	return next, nil
}

// LongTokenBalance is the market's recorded on-hand long-token balance,
// distinct from the liquidity pool's accounting amount: it is adjusted by
// RecordTransferredIn/Out, and RecordTransferredOut rejects a debit larger
// than it.
func (m Market) LongTokenBalance() primitives.U { return m.other.longTokenBalance }

// ShortTokenBalance mirrors LongTokenBalance for the short side.
func (m Market) ShortTokenBalance() primitives.U { return m.other.shortTokenBalance }

// BalanceFor returns the recorded balance for the given side.
func (m Market) BalanceFor(isLong bool) primitives.U {
	if isLong {
		return m.other.longTokenBalance
	}
	return m.other.shortTokenBalance
}

// RecordTransferredIn credits amount to the recorded balance for the given
// side, checked against overflow.
func (m Market) RecordTransferredIn(isLong bool, amount primitives.U) (Market, error) {
	next := m
	if isLong {
		balance, err := m.other.longTokenBalance.CheckedAdd(amount)
		if err != nil {
			return Market{}, errs.Computation("market: overflow crediting long token balance")
		}
		next.other.longTokenBalance = balance
		return next, nil
	}
	balance, err := m.other.shortTokenBalance.CheckedAdd(amount)
	if err != nil {
		return Market{}, errs.Computation("market: overflow crediting short token balance")
	}
	next.other.shortTokenBalance = balance
	return next, nil
}

// RecordTransferredOut debits amount from the recorded balance for the
// given side, checked against underflow (a host paying out more than the
// market holds is a programming error, not a user-triggerable one).
func (m Market) RecordTransferredOut(isLong bool, amount primitives.U) (Market, error) {
	next := m
	if isLong {
		balance, err := m.other.longTokenBalance.CheckedSub(amount)
		if err != nil {
			return Market{}, errs.Computation("market: underflow debiting long token balance")
		}
		next.other.longTokenBalance = balance
		return next, nil
	}
	balance, err := m.other.shortTokenBalance.CheckedSub(amount)
	if err != nil {
		return Market{}, errs.Computation("market: underflow debiting short token balance")
	}
	next.other.shortTokenBalance = balance
	return next, nil
}

// FundingFactorPerSecond is the current signed per-second funding rate.
func (m Market) FundingFactorPerSecond() primitives.S { return m.other.fundingFactorPerSecond }

// WithFundingFactorPerSecond returns a copy of m with a new funding rate.
func (m Market) WithFundingFactorPerSecond(rate primitives.S) Market {
	next := m
	next.other.fundingFactorPerSecond = rate
	return next
}

// TradeCount is the monotonically increasing count of settled trades
// (swaps and position increases/decreases) against this market.
func (m Market) TradeCount() uint64 { return m.other.tradeCount }

// IncrementTradeCount returns a copy of m with TradeCount incremented by one.
func (m Market) IncrementTradeCount() (Market, error) {
	if m.other.tradeCount == ^uint64(0) {
		return Market{}, errs.Computation("market: trade count overflow")
	}
	next := m
	next.other.tradeCount = m.other.tradeCount + 1
	return next, nil
}

// TokenFor returns the market's token address for the given side.
func (m Market) TokenFor(isLong bool) ethcommon.Address {
	if isLong {
		return m.Meta.LongToken
	}
	return m.Meta.ShortToken
}

// --- capability interfaces (spec.md §9: composition over a trait tree) ---

// BaseMarket is the identity and pool/clock accessors every action needs.
type BaseMarket interface {
	MetaOf() Meta
	IsPure() bool
	PoolOf(PoolKind) (pool.Pool, error)
	ClockOf(ClockKind) (int64, error)
}

// SwapMarket is the capability C8 (swap) needs.
type SwapMarket interface {
	BaseMarket
	SwapImpactConfig() SwapImpactParams
	SwapFeeConfig() SwapFeeParams
}

// PositionImpactMarket is the capability C7 (position-impact distribution)
// and position actions need.
type PositionImpactMarket interface {
	BaseMarket
	PositionImpactConfig() PositionImpactParams
	PositionImpactDistributionConfig() PositionImpactDistributionParams
}

// BorrowingMarket is the capability C5 needs.
type BorrowingMarket interface {
	BaseMarket
	BorrowingConfig() BorrowingParams
}

// FundingMarket is the capability C6 needs.
type FundingMarket interface {
	BaseMarket
	FundingConfig() FundingParams
	FundingFactorPerSecond() primitives.S
}

// PerpMarket composes the capabilities C9/C10/C11 (increase, decrease,
// liquidation) need.
type PerpMarket interface {
	BaseMarket
	BorrowingMarket
	FundingMarket
	PositionImpactMarket
	PositionConfig() PositionGeneralParams
	OrderFeeConfig() OrderFeeParams
	LiquidationFeeConfig() LiquidationFeeParams
	ReservesConfig() ReservesParams
}

// LiquidityMarket is the capability deposit/withdrawal boundary checks need.
type LiquidityMarket interface {
	BaseMarket
	SwapMarket
	BoundariesConfig() BoundaryParams
	LongTokenBalance() primitives.U
	ShortTokenBalance() primitives.U
}

func (m Market) SwapImpactConfig() SwapImpactParams         { return m.Config.SwapImpact }
func (m Market) SwapFeeConfig() SwapFeeParams                { return m.Config.SwapFee }
func (m Market) PositionImpactConfig() PositionImpactParams  { return m.Config.PositionImpact }
func (m Market) PositionImpactDistributionConfig() PositionImpactDistributionParams {
	return m.Config.PositionImpactDistribution
}
func (m Market) BorrowingConfig() BorrowingParams             { return m.Config.Borrowing }
func (m Market) FundingConfig() FundingParams                 { return m.Config.Funding }
func (m Market) PositionConfig() PositionGeneralParams        { return m.Config.Position }
func (m Market) OrderFeeConfig() OrderFeeParams                { return m.Config.OrderFee }
func (m Market) LiquidationFeeConfig() LiquidationFeeParams    { return m.Config.LiquidationFee }
func (m Market) ReservesConfig() ReservesParams                { return m.Config.Reserves }
func (m Market) BoundariesConfig() BoundaryParams               { return m.Config.Boundaries }

var (
	_ BaseMarket           = Market{}
	_ SwapMarket           = Market{}
	_ PositionImpactMarket = Market{}
	_ BorrowingMarket      = Market{}
	_ FundingMarket        = Market{}
	_ PerpMarket           = Market{}
	_ LiquidityMarket      = Market{}
)
