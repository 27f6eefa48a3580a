package market

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PositionKey derives a stable, collision-resistant identifier for a
// position from its owner, market, collateral token, and direction,
// mirroring how the original Solana program derives its position PDA from
// the same four fields (owner+market+collateral+is_long). The core itself
// never looks positions up by this key — positions are passed in by the
// caller on every action — but a host needs a deterministic map key, and
// this keeps that derivation in one place rather than reimplemented per
// host.
func PositionKey(owner, marketToken, collateralToken ethcommon.Address, isLong bool) ethcommon.Hash {
	return crypto.Keccak256Hash(owner.Bytes(), marketToken.Bytes(), collateralToken.Bytes(), boolByte(isLong))
}

// OrderKey derives a stable identifier for a pending order from its owner,
// market, and a caller-supplied nonce (e.g. an incrementing per-owner
// counter), the same shape the original program's order PDA uses.
func OrderKey(owner, marketToken ethcommon.Address, nonce uint64) ethcommon.Hash {
	return crypto.Keccak256Hash(owner.Bytes(), marketToken.Bytes(), uint64Bytes(nonce))
}

func boolByte(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
