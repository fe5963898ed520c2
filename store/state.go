// Package store 维护每个 (trader, market) 的策略状态记录：
// 上一周期的挂单标识与大小、报价参数，以及审计用的逻辑时钟。
// 记录在周期结束时由对账器整体写回，不做原地共享内存修改。
package store

import (
	"errors"

	"oracle-mm-go/gateway"
	"oracle-mm-go/strategy"
)

var (
	// ErrInvalidStrategyParams 初始化时必填参数缺失。
	ErrInvalidStrategyParams = errors.New("invalid strategy params")
	// ErrEdgeMustBeNonZero edge 为零会让买卖报价重合，拒绝。
	ErrEdgeMustBeNonZero = errors.New("edge must be non-zero")
	// ErrNotInitialized 策略记录不存在。
	ErrNotInitialized = errors.New("strategy is not initialized")
)

// StrategyState 策略状态记录。Trader/Market 创建后不可变；
// 序列号为 0 表示该边当前没有挂单。
type StrategyState struct {
	Trader string `gorm:"primaryKey;size:64"`
	Market string `gorm:"primaryKey;size:64"`

	BidSequenceNumber uint64
	BidPriceInTicks   uint64
	BidSizeInBaseLots uint64

	AskSequenceNumber uint64
	AskPriceInTicks   uint64
	AskSizeInBaseLots uint64

	QuoteEdgeInBps        uint64
	QuoteSizeInQuoteAtoms uint64
	PostOnly              bool
	Behavior              uint8

	LastUpdateSlot          uint64
	LastUpdateUnixTimestamp int64
}

// Params 初始化/更新入参。nil 字段表示不修改。
type Params struct {
	QuoteEdgeInBps        *uint64
	QuoteSizeInQuoteAtoms *uint64
	PostOnly              *bool
	Behavior              *strategy.Behavior
}

// Clock 提供逻辑时钟：slot 单调递增，timestamp 为 Unix 秒。
// 仅用于审计排序，不做并发控制。
type Clock interface {
	Now() (slot uint64, unixTimestamp int64)
}

// Initialize 创建策略记录。edge、notional、behavior 三者必填，
// edge 为零直接拒绝。
func Initialize(trader, market string, p Params, clock Clock) (StrategyState, error) {
	if p.QuoteEdgeInBps == nil || p.QuoteSizeInQuoteAtoms == nil || p.Behavior == nil {
		return StrategyState{}, ErrInvalidStrategyParams
	}
	if *p.QuoteEdgeInBps == 0 {
		return StrategyState{}, ErrEdgeMustBeNonZero
	}
	slot, ts := clock.Now()
	st := StrategyState{
		Trader:                  trader,
		Market:                  market,
		QuoteEdgeInBps:          *p.QuoteEdgeInBps,
		QuoteSizeInQuoteAtoms:   *p.QuoteSizeInQuoteAtoms,
		Behavior:                p.Behavior.Byte(),
		LastUpdateSlot:          slot,
		LastUpdateUnixTimestamp: ts,
	}
	if p.PostOnly != nil {
		st.PostOnly = *p.PostOnly
	}
	return st, nil
}

// ApplyUpdate 周期开始时套用参数更新。未设置或为零的 edge 保留旧值，
// 绝不把 edge 静默归零。
func (s *StrategyState) ApplyUpdate(p Params, clock Clock) {
	if p.QuoteEdgeInBps != nil && *p.QuoteEdgeInBps > 0 {
		s.QuoteEdgeInBps = *p.QuoteEdgeInBps
	}
	if p.QuoteSizeInQuoteAtoms != nil {
		s.QuoteSizeInQuoteAtoms = *p.QuoteSizeInQuoteAtoms
	}
	if p.PostOnly != nil {
		s.PostOnly = *p.PostOnly
	}
	if p.Behavior != nil {
		s.Behavior = p.Behavior.Byte()
	}
	s.LastUpdateSlot, s.LastUpdateUnixTimestamp = clock.Now()
}

// BehaviorValue 解码持久化的行为字节。
func (s *StrategyState) BehaviorValue() (strategy.Behavior, error) {
	return strategy.BehaviorFromByte(s.Behavior)
}

// SideState 返回某一边记录的订单信息。
func (s *StrategyState) SideState(side gateway.Side) (id gateway.OrderID, sizeInBaseLots uint64) {
	if side == gateway.Bid {
		return gateway.OrderID{PriceInTicks: s.BidPriceInTicks, SequenceNumber: s.BidSequenceNumber}, s.BidSizeInBaseLots
	}
	return gateway.OrderID{PriceInTicks: s.AskPriceInTicks, SequenceNumber: s.AskSequenceNumber}, s.AskSizeInBaseLots
}

// SetSide 记录某一边新挂单；ClearSide 清空该边。
func (s *StrategyState) SetSide(side gateway.Side, id gateway.OrderID, sizeInBaseLots uint64) {
	if side == gateway.Bid {
		s.BidSequenceNumber = id.SequenceNumber
		s.BidPriceInTicks = id.PriceInTicks
		s.BidSizeInBaseLots = sizeInBaseLots
		return
	}
	s.AskSequenceNumber = id.SequenceNumber
	s.AskPriceInTicks = id.PriceInTicks
	s.AskSizeInBaseLots = sizeInBaseLots
}

func (s *StrategyState) ClearSide(side gateway.Side) {
	s.SetSide(side, gateway.OrderID{}, 0)
}
