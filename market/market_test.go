package market

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/johnayoung/perpcore/pool"
	"github.com/johnayoung/perpcore/primitives"
)

func testMeta() Meta {
	return Meta{
		MarketToken: ethcommon.HexToAddress("0x1"),
		IndexToken:  ethcommon.HexToAddress("0x2"),
		LongToken:   ethcommon.HexToAddress("0x3"),
		ShortToken:  ethcommon.HexToAddress("0x4"),
	}
}

func TestNewIsTotal(t *testing.T) {
	m := New(testMeta(), Config{}, Flags{Enabled: true})

	for _, k := range allPoolKinds {
		if _, err := m.PoolOf(k); err != nil {
			t.Errorf("pool kind %s missing from freshly constructed market: %v", k, err)
		}
	}
	for _, k := range allClockKinds {
		if _, err := m.ClockOf(k); err != nil {
			t.Errorf("clock kind %s missing from freshly constructed market: %v", k, err)
		}
	}
}

func TestWithPoolIsImmutable(t *testing.T) {
	m := New(testMeta(), Config{}, Flags{})

	updated, err := m.WithPool(PoolLiquidity, pool.Pool{Long: primitives.NewU(100)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	original, _ := m.PoolOf(PoolLiquidity)
	if !original.Long.IsZero() {
		t.Errorf("original market was mutated: %+v", original)
	}

	got, _ := updated.PoolOf(PoolLiquidity)
	if !got.Long.Equal(primitives.NewU(100)) {
		t.Errorf("expected updated pool long=100, got %s", got.Long)
	}
}

func TestWithPoolRejectsUnknownKind(t *testing.T) {
	m := New(testMeta(), Config{}, Flags{})
	if _, err := m.WithPool(PoolKind("not_a_kind"), pool.Pool{}); err == nil {
		t.Fatalf("expected error for unknown pool kind")
	}
}

func TestRecordTransferredInAndOut(t *testing.T) {
	m := New(testMeta(), Config{}, Flags{})

	m, err := m.RecordTransferredIn(true, primitives.NewU(500))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.LongTokenBalance().Equal(primitives.NewU(500)) {
		t.Errorf("expected long balance 500, got %s", m.LongTokenBalance())
	}

	m, err = m.RecordTransferredOut(true, primitives.NewU(200))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !m.LongTokenBalance().Equal(primitives.NewU(300)) {
		t.Errorf("expected long balance 300, got %s", m.LongTokenBalance())
	}

	if _, err := m.RecordTransferredOut(true, primitives.NewU(1_000)); err == nil {
		t.Fatalf("expected underflow error paying out more than recorded balance")
	}
}

func TestIncrementTradeCount(t *testing.T) {
	m := New(testMeta(), Config{}, Flags{})
	if m.TradeCount() != 0 {
		t.Fatalf("expected fresh market trade count 0, got %d", m.TradeCount())
	}

	m, err := m.IncrementTradeCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.TradeCount() != 1 {
		t.Errorf("expected trade count 1, got %d", m.TradeCount())
	}
}

func TestIsPureFollowsMetaOrFlag(t *testing.T) {
	meta := testMeta()
	m := New(meta, Config{}, Flags{})
	if m.IsPure() {
		t.Fatalf("expected distinct long/short tokens to not be pure")
	}

	pureMeta := meta
	pureMeta.ShortToken = pureMeta.LongToken
	pureMarket := New(pureMeta, Config{}, Flags{})
	if !pureMarket.IsPure() {
		t.Errorf("expected equal long/short tokens to be pure")
	}

	flagged := New(meta, Config{}, Flags{Pure: true})
	if !flagged.IsPure() {
		t.Errorf("expected Pure flag to force pure regardless of token identity")
	}
}
