package strategy

import (
	"math"

	"oracle-mm-go/gateway"
	"oracle-mm-go/internal/checked"
	"oracle-mm-go/oracle"
)

// Quote 单边候选报价；Active 为 false 表示本周期该边不挂单。
type Quote struct {
	PriceInTicks   uint64
	SizeInBaseLots uint64
	Active         bool
}

// QuotePair 一个周期的买卖候选对。
type QuotePair struct {
	Bid Quote
	Ask Quote
}

// QuoteParams 报价参数，来自策略状态。EdgeBps 必须大于零，
// 由状态机在 initialize/update 边界强制，这里不再检查。
type QuoteParams struct {
	EdgeBps              uint64
	NotionalInQuoteAtoms uint64
	Behavior             Behavior
}

// FairPriceInTicks 把 base/quote 两条 1e6 定点公允价换算为市场 tick 单位：
//
//	fairQuoteAtoms = baseFair * 10^quoteDecimals / quoteFair
//	fairTicks      = fairQuoteAtoms * rawBaseUnitsPerBaseUnit / tickSize
//
// 两步都向下截断。注意截断方向与买卖方向无关：卖边的 edge 也是基于
// 偏低的公允价算出来的，这里保持原样（改掉会改变报价行为）。
func FairPriceInTicks(baseFair, quoteFair oracle.FairPrice, meta gateway.MarketMeta) (uint64, error) {
	quoteScale, err := checked.Pow10(meta.QuoteDecimals)
	if err != nil {
		return 0, err
	}
	fairQuoteAtoms, err := checked.MulDiv(uint64(baseFair), quoteScale, uint64(quoteFair))
	if err != nil {
		return 0, err
	}
	return checked.MulDiv(fairQuoteAtoms, uint64(meta.RawBaseUnitsPerBaseUnit), meta.TickSizeInQuoteAtomsPerBaseUnit)
}

// edgeInTicks = edgeBps * fairTicks / 10_000（截断）。
func edgeInTicks(edgeBps, fairTicks uint64) (uint64, error) {
	return checked.MulDiv(edgeBps, fairTicks, 10_000)
}

// sizeInBaseLots = (notional/quoteLotSize) * baseLotsPerBaseUnit / (price * tickSize)。
func sizeInBaseLots(notional, priceInTicks uint64, meta gateway.MarketMeta) (uint64, error) {
	sizeInQuoteLots := notional / meta.QuoteLotSize
	denom, err := checked.Mul(priceInTicks, meta.TickSizeInQuoteAtomsPerBaseUnit)
	if err != nil {
		// 价格×tick 超出 u64（空盘哨兵价附近），数量向下截断为 0
		return 0, nil
	}
	if denom == 0 {
		return 0, nil
	}
	return checked.MulDiv(sizeInQuoteLots, meta.BaseLotsPerBaseUnit, denom)
}

// ComputeQuotes 计算一个周期的候选买卖报价对。纯函数，无副作用。
func ComputeQuotes(baseFair, quoteFair oracle.FairPrice, meta gateway.MarketMeta, p QuoteParams, book gateway.BookSnapshot) (QuotePair, error) {
	fairTicks, err := FairPriceInTicks(baseFair, quoteFair, meta)
	if err != nil {
		return QuotePair{}, err
	}
	edge, err := edgeInTicks(p.EdgeBps, fairTicks)
	if err != nil {
		return QuotePair{}, err
	}

	bidTicks := checked.SubSat(fairTicks, edge)
	askTicks, err := checked.Add(fairTicks, edge)
	if err != nil {
		return QuotePair{}, err
	}

	switch p.Behavior {
	case BehaviorJoin:
		// 报价落在盘口之内时并入最优价，绝不报出比最优更差的价格之外侧
		askTicks = max(askTicks, book.BestAskInTicks)
		bidTicks = min(bidTicks, book.BestBidInTicks)
	case BehaviorDime:
		// 最多改进一个 tick
		askTicks = max(askTicks, book.BestAskInTicks-1)
		bidTicks = min(bidTicks, book.BestBidInTicks+1)
	case BehaviorIgnore:
	}

	// 价格先行校验：落在哨兵价上的一边直接判定不挂单，
	// 不再用哨兵价去算数量；另一边不受影响。
	bid := Quote{PriceInTicks: bidTicks}
	if bidTicks > 1 {
		size, err := sizeInBaseLots(p.NotionalInQuoteAtoms, bidTicks, meta)
		if err != nil {
			return QuotePair{}, err
		}
		bid.SizeInBaseLots = size
		bid.Active = size > 0
	}
	ask := Quote{PriceInTicks: askTicks}
	if askTicks < math.MaxUint64 {
		size, err := sizeInBaseLots(p.NotionalInQuoteAtoms, askTicks, meta)
		if err != nil {
			return QuotePair{}, err
		}
		ask.SizeInBaseLots = size
		ask.Active = size > 0
	}

	return QuotePair{Bid: bid, Ask: ask}, nil
}
