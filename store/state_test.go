package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-mm-go/gateway"
	"oracle-mm-go/strategy"
)

type fakeClock struct {
	slot uint64
	ts   int64
}

func (c *fakeClock) Now() (uint64, int64) {
	c.slot++
	c.ts++
	return c.slot, c.ts
}

func u64(v uint64) *uint64              { return &v }
func boolp(v bool) *bool                { return &v }
func bh(b strategy.Behavior) *strategy.Behavior { return &b }

func TestInitializeRequiresAllParams(t *testing.T) {
	clock := &fakeClock{}
	full := Params{
		QuoteEdgeInBps:        u64(3),
		QuoteSizeInQuoteAtoms: u64(100_000_000),
		Behavior:              bh(strategy.BehaviorIgnore),
		PostOnly:              boolp(true),
	}

	st, err := Initialize("trader", "market", full, clock)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.QuoteEdgeInBps)
	assert.True(t, st.PostOnly)
	assert.Zero(t, st.BidSequenceNumber)
	assert.Zero(t, st.AskSequenceNumber)
	assert.NotZero(t, st.LastUpdateSlot)

	for _, p := range []Params{
		{QuoteSizeInQuoteAtoms: u64(1), Behavior: bh(strategy.BehaviorJoin)},
		{QuoteEdgeInBps: u64(3), Behavior: bh(strategy.BehaviorJoin)},
		{QuoteEdgeInBps: u64(3), QuoteSizeInQuoteAtoms: u64(1)},
	} {
		_, err := Initialize("trader", "market", p, clock)
		assert.ErrorIs(t, err, ErrInvalidStrategyParams)
	}
}

func TestInitializeRejectsZeroEdge(t *testing.T) {
	_, err := Initialize("trader", "market", Params{
		QuoteEdgeInBps:        u64(0),
		QuoteSizeInQuoteAtoms: u64(1),
		Behavior:              bh(strategy.BehaviorJoin),
	}, &fakeClock{})
	assert.ErrorIs(t, err, ErrEdgeMustBeNonZero)
}

func TestApplyUpdateRetainsEdgeOnZeroOrUnset(t *testing.T) {
	clock := &fakeClock{}
	st, err := Initialize("trader", "market", Params{
		QuoteEdgeInBps:        u64(5),
		QuoteSizeInQuoteAtoms: u64(100),
		Behavior:              bh(strategy.BehaviorJoin),
	}, clock)
	require.NoError(t, err)

	// edge 为零：保留旧值
	st.ApplyUpdate(Params{QuoteEdgeInBps: u64(0)}, clock)
	assert.Equal(t, uint64(5), st.QuoteEdgeInBps)

	// edge 未设置：保留旧值，其他字段可改
	st.ApplyUpdate(Params{QuoteSizeInQuoteAtoms: u64(200), PostOnly: boolp(true)}, clock)
	assert.Equal(t, uint64(5), st.QuoteEdgeInBps)
	assert.Equal(t, uint64(200), st.QuoteSizeInQuoteAtoms)
	assert.True(t, st.PostOnly)

	// 有效 edge：更新
	st.ApplyUpdate(Params{QuoteEdgeInBps: u64(9), Behavior: bh(strategy.BehaviorDime)}, clock)
	assert.Equal(t, uint64(9), st.QuoteEdgeInBps)
	got, err := st.BehaviorValue()
	require.NoError(t, err)
	assert.Equal(t, strategy.BehaviorDime, got)
}

func TestSideStateRoundTrip(t *testing.T) {
	var st StrategyState
	id := gateway.OrderID{PriceInTicks: 995, SequenceNumber: 7}
	st.SetSide(gateway.Bid, id, 42)

	gotID, gotSize := st.SideState(gateway.Bid)
	assert.Equal(t, id, gotID)
	assert.Equal(t, uint64(42), gotSize)

	st.ClearSide(gateway.Bid)
	gotID, gotSize = st.SideState(gateway.Bid)
	assert.Zero(t, gotID.SequenceNumber)
	assert.Zero(t, gotSize)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	_, ok, err := m.Load("t", "m")
	require.NoError(t, err)
	assert.False(t, ok)

	st := StrategyState{Trader: "t", Market: "m", QuoteEdgeInBps: 3}
	require.NoError(t, m.Save(st))
	got, ok, err := m.Load("t", "m")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, st, got)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mm.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	_, ok, err := s.Load("trader", "market")
	require.NoError(t, err)
	assert.False(t, ok)

	st := StrategyState{
		Trader:                "trader",
		Market:                "market",
		BidSequenceNumber:     11,
		BidPriceInTicks:       995,
		BidSizeInBaseLots:     100,
		QuoteEdgeInBps:        3,
		QuoteSizeInQuoteAtoms: 100_000_000,
		PostOnly:              true,
		Behavior:              strategy.BehaviorDime.Byte(),
	}
	require.NoError(t, s.Save(st))

	got, ok, err := s.Load("trader", "market")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, got)

	// 覆盖写回
	st.BidSequenceNumber = 12
	require.NoError(t, s.Save(st))
	got, _, _ = s.Load("trader", "market")
	assert.Equal(t, uint64(12), got.BidSequenceNumber)
}
