// Package gateway 定义撮合场所适配器：行情快照、撤单/下单批量请求，
// 以及用于测试和 dryRun 的内存模拟盘。真实的 RPC 传输由外部实现注入。
package gateway

import (
	"fmt"
	"math"
)

// Side 订单方向。
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "BID"
	}
	return "ASK"
}

// 空档哨兵值：无对手买单时最优买价记 1，无对手卖单时最优卖价记 MaxUint64。
const (
	NoBestBid uint64 = 1
	NoBestAsk uint64 = math.MaxUint64
)

// OrderID 场所分配的订单标识：价格 + 序列号，两者同时匹配才算同一笔。
type OrderID struct {
	PriceInTicks   uint64
	SequenceNumber uint64
}

// RestingOrder 盘口里仍然存活的限价单。
type RestingOrder struct {
	PriceInTicks   uint64
	SequenceNumber uint64
	SizeInBaseLots uint64
}

// BookSnapshot 单周期借用的盘口视图：最优买卖价剔除本策略自身挂单，
// Bids/Asks 仅包含本策略 trader 的存活订单（按序列号索引）。
type BookSnapshot struct {
	BestBidInTicks uint64
	BestAskInTicks uint64
	Bids           map[uint64]RestingOrder
	Asks           map[uint64]RestingOrder
}

// Find 在快照中查找记录过的订单；价格与序列号必须同时命中。
func (b BookSnapshot) Find(side Side, id OrderID) (RestingOrder, bool) {
	book := b.Bids
	if side == Ask {
		book = b.Asks
	}
	o, ok := book[id.SequenceNumber]
	if !ok || o.PriceInTicks != id.PriceInTicks {
		return RestingOrder{}, false
	}
	return o, true
}

// MarketMeta 市场静态参数，每周期取一次，使用前必须经 ValidateMeta 校验。
type MarketMeta struct {
	Owner                           string
	Discriminant                    uint64
	TickSizeInQuoteAtomsPerBaseUnit uint64
	BaseLotsPerBaseUnit             uint64
	QuoteLotSize                    uint64
	RawBaseUnitsPerBaseUnit         uint32
	BaseDecimals                    uint32
	QuoteDecimals                   uint32
}

// CancelOrder 撤单批量请求的一项。
type CancelOrder struct {
	Side Side
	ID   OrderID
}

// PlaceOrder 下单批量请求的一项。
type PlaceOrder struct {
	Side           Side
	PriceInTicks   uint64
	SizeInBaseLots uint64
	PostOnly       bool
	ClientID       string
}

// PlacedOrder 下单回执：场所分配的订单标识，按方向归属。
type PlacedOrder struct {
	Side Side
	ID   OrderID
}

// VenueError 场所侧失败（撤单/下单被拒、盘口数据异常）。
type VenueError struct {
	Op  string
	Err error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue %s: %v", e.Op, e.Err)
}

func (e *VenueError) Unwrap() error { return e.Err }
