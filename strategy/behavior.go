// Package strategy 由两条公允价、市场 tick/lot 参数和盘口计算目标买卖报价。
// 全部为纯函数，溢出即报错，不做任何 IO。
package strategy

import (
	"errors"
	"fmt"
	"strings"
)

// Behavior 价格改进行为：决定报价如何对待当前最优买卖价。
type Behavior uint8

const (
	// BehaviorJoin 报价越过盘口时并入最优价位，吃被动返佣但不改进。
	BehaviorJoin Behavior = iota
	// BehaviorDime 最多改进一个 tick。
	BehaviorDime
	// BehaviorIgnore 完全按计算值报价，不看盘口。
	BehaviorIgnore
)

// ErrInvalidBehavior 未知的价格改进行为。
var ErrInvalidBehavior = errors.New("invalid price improvement behavior")

func (b Behavior) String() string {
	switch b {
	case BehaviorJoin:
		return "join"
	case BehaviorDime:
		return "dime"
	case BehaviorIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("behavior(%d)", uint8(b))
	}
}

// Byte 持久化编码。
func (b Behavior) Byte() byte { return byte(b) }

// BehaviorFromByte 从持久化字节解码；非法输入返回错误而不是 panic。
func BehaviorFromByte(v byte) (Behavior, error) {
	switch Behavior(v) {
	case BehaviorJoin, BehaviorDime, BehaviorIgnore:
		return Behavior(v), nil
	default:
		return 0, fmt.Errorf("%w: byte %d", ErrInvalidBehavior, v)
	}
}

// ParseBehavior 解析配置字符串。未知值是配置错误，不做静默兜底。
func ParseBehavior(s string) (Behavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "join":
		return BehaviorJoin, nil
	case "dime":
		return BehaviorDime, nil
	case "ignore":
		return BehaviorIgnore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidBehavior, s)
	}
}
