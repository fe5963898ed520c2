package gateway

import (
	"context"
	"errors"
	"sync"
)

// SimVenue 内存模拟盘，用于测试与 dryRun 运行。
// 维护单一 trader 的存活订单、外部最优买卖价和递增序列号；
// 下单/撤单语义尽量贴近真实场所：
//   - 撤单批量要么全部成功要么整批报错；
//   - 非 post-only 订单越过对手价时按立即成交处理（不挂入盘口）；
//   - post-only 订单越过对手价时该腿被拒绝（回执中不出现）。
type SimVenue struct {
	mu   sync.Mutex
	meta MarketMeta

	bestBid uint64
	bestAsk uint64

	bids map[uint64]RestingOrder
	asks map[uint64]RestingOrder

	nextSeq uint64

	failCancels bool
	failPlaces  bool

	PlaceCalls  int
	CancelCalls int
}

// NewSimVenue 创建空盘模拟场所。
func NewSimVenue(meta MarketMeta) *SimVenue {
	return &SimVenue{
		meta:    meta,
		bestBid: NoBestBid,
		bestAsk: NoBestAsk,
		bids:    make(map[uint64]RestingOrder),
		asks:    make(map[uint64]RestingOrder),
		nextSeq: 1,
	}
}

func (v *SimVenue) MarketMeta(ctx context.Context) (MarketMeta, error) {
	if err := ctx.Err(); err != nil {
		return MarketMeta{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.meta, nil
}

func (v *SimVenue) BookExcluding(ctx context.Context, trader string) (BookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return BookSnapshot{}, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	snap := BookSnapshot{
		BestBidInTicks: v.bestBid,
		BestAskInTicks: v.bestAsk,
		Bids:           make(map[uint64]RestingOrder, len(v.bids)),
		Asks:           make(map[uint64]RestingOrder, len(v.asks)),
	}
	for seq, o := range v.bids {
		snap.Bids[seq] = o
	}
	for seq, o := range v.asks {
		snap.Asks[seq] = o
	}
	return snap, nil
}

func (v *SimVenue) CancelOrders(ctx context.Context, cancels []CancelOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.CancelCalls++
	if v.failCancels {
		return &VenueError{Op: "cancel", Err: errors.New("simulated cancel rejection")}
	}
	for _, c := range cancels {
		book := v.bids
		if c.Side == Ask {
			book = v.asks
		}
		o, ok := book[c.ID.SequenceNumber]
		if ok && o.PriceInTicks == c.ID.PriceInTicks {
			delete(book, c.ID.SequenceNumber)
		}
	}
	return nil
}

func (v *SimVenue) PlaceOrders(ctx context.Context, orders []PlaceOrder) ([]PlacedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.PlaceCalls++
	if v.failPlaces {
		return nil, &VenueError{Op: "place", Err: errors.New("simulated place rejection")}
	}
	placed := make([]PlacedOrder, 0, len(orders))
	for _, o := range orders {
		crosses := (o.Side == Bid && o.PriceInTicks >= v.bestAsk) ||
			(o.Side == Ask && o.PriceInTicks <= v.bestBid)
		if crosses && o.PostOnly {
			continue
		}
		seq := v.nextSeq
		v.nextSeq++
		id := OrderID{PriceInTicks: o.PriceInTicks, SequenceNumber: seq}
		if !crosses {
			rest := RestingOrder{
				PriceInTicks:   o.PriceInTicks,
				SequenceNumber: seq,
				SizeInBaseLots: o.SizeInBaseLots,
			}
			if o.Side == Bid {
				v.bids[seq] = rest
			} else {
				v.asks[seq] = rest
			}
		}
		placed = append(placed, PlacedOrder{Side: o.Side, ID: id})
	}
	return placed, nil
}

// SetMeta 替换市场元数据（测试校验路径用）。
func (v *SimVenue) SetMeta(meta MarketMeta) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.meta = meta
}

// SetBBO 设置外部最优买卖价（剔除 trader 自身）。
func (v *SimVenue) SetBBO(bestBid, bestAsk uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bestBid = bestBid
	v.bestAsk = bestAsk
}

// Fill 模拟部分成交：削减指定订单的剩余数量，减到 0 时移出盘口。
func (v *SimVenue) Fill(side Side, seq uint64, lots uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	book := v.bids
	if side == Ask {
		book = v.asks
	}
	o, ok := book[seq]
	if !ok {
		return
	}
	if lots >= o.SizeInBaseLots {
		delete(book, seq)
		return
	}
	o.SizeInBaseLots -= lots
	book[seq] = o
}

// FailCancels 注入撤单失败。
func (v *SimVenue) FailCancels(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failCancels = fail
}

// FailPlaces 注入下单失败。
func (v *SimVenue) FailPlaces(fail bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failPlaces = fail
}

// RestingCount 返回 trader 当前存活订单数（测试用）。
func (v *SimVenue) RestingCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.bids) + len(v.asks)
}
