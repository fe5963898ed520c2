// Package oracle 将预言机原始读数归一化为统一的定点公允价。
// 读数每周期重新拉取，属于一次性数据，不跨周期持有。
package oracle

import (
	"context"
	"errors"
	"time"

	"oracle-mm-go/internal/checked"
)

// FairDecimals 内部定点精度：公允价统一放大 10^6。
const FairDecimals = 6

// FairPrice 定点公允价（1e6 精度）。
type FairPrice uint64

var (
	// ErrStale 读数发布时间超过允许的最大时延。
	ErrStale = errors.New("oracle price is stale")
	// ErrUnavailable 拉取不到读数。
	ErrUnavailable = errors.New("oracle price is unavailable")
	// ErrInvalidPrice 负数或零 mantissa 不是有效价格。
	ErrInvalidPrice = errors.New("oracle price is not positive")
)

// Reading 预言机原始读数：mantissa * 10^expo，附置信区间和发布时间。
type Reading struct {
	Price       int64
	Expo        int32
	Conf        uint64
	PublishTime int64 // Unix 秒
}

// Source 单条价格源。拉取失败时返回 ErrUnavailable。
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// Normalize 把读数换算为 1e6 精度定点值：price * 10^(6+expo)。
// now 为当前 Unix 秒；发布时间落后超过 maxAge 时返回 ErrStale。
// 纯函数，所有运算带溢出检查。
func Normalize(r Reading, now int64, maxAge time.Duration) (FairPrice, error) {
	if now-r.PublishTime > int64(maxAge/time.Second) {
		return 0, ErrStale
	}
	if r.Price <= 0 {
		return 0, ErrInvalidPrice
	}
	mantissa := uint64(r.Price)

	e := int32(FairDecimals) + r.Expo
	if e >= 0 {
		scale, err := checked.Pow10(uint32(e))
		if err != nil {
			return 0, err
		}
		v, err := checked.Mul(mantissa, scale)
		if err != nil {
			return 0, err
		}
		return FairPrice(v), nil
	}

	scale, err := checked.Pow10(uint32(-e))
	if err != nil {
		return 0, err
	}
	v := mantissa / scale
	if v == 0 {
		// 精度不足以表示该价格，后续除法会除零，按无效处理。
		return 0, ErrInvalidPrice
	}
	return FairPrice(v), nil
}
