package order

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oracle-mm-go/gateway"
	"oracle-mm-go/store"
	"oracle-mm-go/strategy"
)

func simMeta() gateway.MarketMeta {
	return gateway.MarketMeta{
		TickSizeInQuoteAtomsPerBaseUnit: 1,
		BaseLotsPerBaseUnit:             1000,
		QuoteLotSize:                    1,
		RawBaseUnitsPerBaseUnit:         1,
	}
}

func baseState(behavior strategy.Behavior, postOnly bool) store.StrategyState {
	return store.StrategyState{
		Trader:                "trader",
		Market:                "market",
		QuoteEdgeInBps:        50,
		QuoteSizeInQuoteAtoms: 100_000,
		PostOnly:              postOnly,
		Behavior:              behavior.Byte(),
	}
}

func quotes(bidTicks, bidLots, askTicks, askLots uint64) strategy.QuotePair {
	return strategy.QuotePair{
		Bid: strategy.Quote{PriceInTicks: bidTicks, SizeInBaseLots: bidLots, Active: true},
		Ask: strategy.Quote{PriceInTicks: askTicks, SizeInBaseLots: askLots, Active: true},
	}
}

func TestRunPlacesBothSidesAndRecordsVenueValues(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	res, err := r.Run(ctx, &st, quotes(995, 100, 1005, 99), gateway.BookSnapshot{
		BestBidInTicks: 990, BestAskInTicks: 1010,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Placed)
	assert.Equal(t, 0, res.Canceled)

	// 写回的值必须与场所回执一致
	book, _ := venue.BookExcluding(ctx, "trader")
	bidID, bidSize := st.SideState(gateway.Bid)
	resting, ok := book.Find(gateway.Bid, bidID)
	require.True(t, ok)
	assert.Equal(t, resting.SizeInBaseLots, bidSize)
	assert.Equal(t, uint64(995), bidID.PriceInTicks)

	askID, askSize := st.SideState(gateway.Ask)
	resting, ok = book.Find(gateway.Ask, askID)
	require.True(t, ok)
	assert.Equal(t, resting.SizeInBaseLots, askSize)
	assert.Equal(t, uint64(1005), askID.PriceInTicks)
}

func TestRunIsIdempotentWhenBookUnchanged(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	q := quotes(995, 100, 1005, 99)
	book, _ := venue.BookExcluding(ctx, "trader")
	_, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	placeCalls := venue.PlaceCalls

	// 盘口和候选都没变：第二次必须空转
	book, _ = venue.BookExcluding(ctx, "trader")
	res, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	assert.True(t, res.Noop)
	assert.Equal(t, placeCalls, venue.PlaceCalls)
	assert.Equal(t, 0, venue.CancelCalls)
}

func TestRunReplacesPartiallyFilledOrder(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	q := quotes(995, 100, 1005, 99)
	book, _ := venue.BookExcluding(ctx, "trader")
	_, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)

	// 买单被部分吃掉
	bidID, _ := st.SideState(gateway.Bid)
	venue.Fill(gateway.Bid, bidID.SequenceNumber, 40)

	book, _ = venue.BookExcluding(ctx, "trader")
	res, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Canceled)
	assert.Equal(t, 1, res.Placed)

	// 新买单接替旧买单
	newBidID, newBidSize := st.SideState(gateway.Bid)
	assert.NotEqual(t, bidID.SequenceNumber, newBidID.SequenceNumber)
	assert.Equal(t, uint64(100), newBidSize)
}

func TestRunVanishedOrderPlacesWithoutCancel(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	q := quotes(995, 100, 1005, 99)
	book, _ := venue.BookExcluding(ctx, "trader")
	_, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)

	// 买单全部成交，从盘口消失
	bidID, _ := st.SideState(gateway.Bid)
	venue.Fill(gateway.Bid, bidID.SequenceNumber, 100)
	cancelCalls := venue.CancelCalls

	book, _ = venue.BookExcluding(ctx, "trader")
	res, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Canceled)
	assert.Equal(t, 1, res.Placed)
	assert.Equal(t, cancelCalls, venue.CancelCalls)
}

func TestRunCancelFailureSkipsPlacement(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	q := quotes(995, 100, 1005, 99)
	book, _ := venue.BookExcluding(ctx, "trader")
	_, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	before := st

	// 价格移动触发换单，但撤单被拒
	venue.FailCancels(true)
	placeCalls := venue.PlaceCalls
	book, _ = venue.BookExcluding(ctx, "trader")
	_, err = r.Run(ctx, &st, quotes(996, 100, 1006, 99), book)
	require.Error(t, err)
	assert.Equal(t, placeCalls, venue.PlaceCalls, "must not place after failed cancel")
	assert.Equal(t, before, st, "state must stay untouched on failed cancel")
}

func TestRunSequentialPlacementForJoinWithoutPostOnly(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorJoin, false)
	r := NewReconciler(venue, nil)

	book, _ := venue.BookExcluding(ctx, "trader")
	res, err := r.Run(ctx, &st, quotes(995, 100, 1005, 99), book)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Placed)
	// 特例：非 post-only 且 Join 时买卖各发一笔
	assert.Equal(t, 2, venue.PlaceCalls)
}

func TestRunBatchedPlacementOtherwise(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name     string
		behavior strategy.Behavior
		postOnly bool
	}{
		{"post-only join", strategy.BehaviorJoin, true},
		{"dime", strategy.BehaviorDime, false},
		{"ignore", strategy.BehaviorIgnore, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			venue := gateway.NewSimVenue(simMeta())
			venue.SetBBO(990, 1010)
			st := baseState(tc.behavior, tc.postOnly)
			r := NewReconciler(venue, nil)

			book, _ := venue.BookExcluding(ctx, "trader")
			_, err := r.Run(ctx, &st, quotes(995, 100, 1005, 99), book)
			require.NoError(t, err)
			assert.Equal(t, 1, venue.PlaceCalls)
		})
	}
}

func TestRunInactiveSideIsNotPlaced(t *testing.T) {
	ctx := context.Background()
	venue := gateway.NewSimVenue(simMeta())
	venue.SetBBO(990, 1010)
	st := baseState(strategy.BehaviorIgnore, true)
	r := NewReconciler(venue, nil)

	q := strategy.QuotePair{
		Bid: strategy.Quote{PriceInTicks: 995, SizeInBaseLots: 100, Active: true},
		Ask: strategy.Quote{PriceInTicks: 1005, SizeInBaseLots: 0, Active: false},
	}
	book, _ := venue.BookExcluding(ctx, "trader")
	res, err := r.Run(ctx, &st, q, book)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Placed)
	askID, _ := st.SideState(gateway.Ask)
	assert.Zero(t, askID.SequenceNumber)
}

func TestBuildPlanNoopWhenIdenticalAndInactiveCandidates(t *testing.T) {
	st := baseState(strategy.BehaviorIgnore, true)
	st.SetSide(gateway.Bid, gateway.OrderID{PriceInTicks: 995, SequenceNumber: 3}, 100)
	book := gateway.BookSnapshot{
		Bids: map[uint64]gateway.RestingOrder{
			3: {PriceInTicks: 995, SequenceNumber: 3, SizeInBaseLots: 100},
		},
		Asks: map[uint64]gateway.RestingOrder{},
	}
	q := strategy.QuotePair{
		Bid: strategy.Quote{PriceInTicks: 995, SizeInBaseLots: 100, Active: true},
		Ask: strategy.Quote{Active: false},
	}
	plan := BuildPlan(st, q, book)
	assert.True(t, plan.Noop())
}
