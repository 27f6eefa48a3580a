package market

import ethcommon "github.com/ethereum/go-ethereum/common"

// Meta names the four token identities a Market is defined over. MarketToken
// is the receipt/LP token minted against deposits; IndexToken is the asset a
// position tracks; LongToken/ShortToken back the long/short sides of the
// pool (in a pure market they are equal).
type Meta struct {
	MarketToken ethcommon.Address
	IndexToken  ethcommon.Address
	LongToken   ethcommon.Address
	ShortToken  ethcommon.Address
}

// IsPure reports whether the market's long and short tokens coincide, which
// triggers the Pool rewrite rule (spec.md C2).
func (m Meta) IsPure() bool {
	return m.LongToken == m.ShortToken
}
