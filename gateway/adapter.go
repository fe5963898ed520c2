package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Adapter 策略核心消费的场所接口。每个调用都应受 ctx 超时约束；
// 周期可以在两次调用之间被打断，但不能打断单次调用。
type Adapter interface {
	// MarketMeta 返回市场静态参数（tick/lot 换算）。
	MarketMeta(ctx context.Context) (MarketMeta, error)
	// BookExcluding 返回剔除 trader 自身挂单的盘口快照。
	BookExcluding(ctx context.Context, trader string) (BookSnapshot, error)
	// CancelOrders 单批撤销全部给定订单；任一失败则整批报错。
	CancelOrders(ctx context.Context, cancels []CancelOrder) error
	// PlaceOrders 提交订单并返回场所分配的标识，顺序与成交与否由场所决定。
	PlaceOrders(ctx context.Context, orders []PlaceOrder) ([]PlacedOrder, error)
}

// 市场元数据校验错误。场所数据一律按不可信输入对待。
var (
	ErrWrongOwner        = errors.New("market account has unexpected owner")
	ErrWrongDiscriminant = errors.New("market account has unexpected discriminant")
	ErrBadMarketParams   = errors.New("market tick/lot parameters are invalid")
)

// ValidateMeta 在使用市场参数之前做所有权、判别值与量纲检查，
// 对应链上版本里账户约束注解所隐含的校验。
func ValidateMeta(meta MarketMeta, expectedOwner string, expectedDiscriminant uint64) error {
	if expectedOwner != "" && meta.Owner != expectedOwner {
		return fmt.Errorf("%w: %s", ErrWrongOwner, meta.Owner)
	}
	if expectedDiscriminant != 0 && meta.Discriminant != expectedDiscriminant {
		return fmt.Errorf("%w: %d", ErrWrongDiscriminant, meta.Discriminant)
	}
	if meta.TickSizeInQuoteAtomsPerBaseUnit == 0 {
		return fmt.Errorf("%w: zero tick size", ErrBadMarketParams)
	}
	if meta.BaseLotsPerBaseUnit == 0 {
		return fmt.Errorf("%w: zero base lots per base unit", ErrBadMarketParams)
	}
	if meta.QuoteLotSize == 0 {
		return fmt.Errorf("%w: zero quote lot size", ErrBadMarketParams)
	}
	if meta.RawBaseUnitsPerBaseUnit == 0 {
		return fmt.Errorf("%w: zero raw base units per base unit", ErrBadMarketParams)
	}
	return nil
}
