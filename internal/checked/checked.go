// Package checked 提供带溢出检查的 64 位定点运算，
// 对应撮合价格换算中所有 128 位中间值的计算。
package checked

import (
	"errors"
	"math/bits"
)

// ErrOverflow 任何 tick/lot 换算溢出都是致命错误，绝不静默截断。
var ErrOverflow = errors.New("arithmetic overflow")

// ErrDivideByZero division by zero in a tick/lot conversion.
var ErrDivideByZero = errors.New("divide by zero")

// pow10 covers every exponent a u64 can hold.
var pow10 = [20]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
	100_000_000, 1_000_000_000, 10_000_000_000, 100_000_000_000,
	1_000_000_000_000, 10_000_000_000_000, 100_000_000_000_000,
	1_000_000_000_000_000, 10_000_000_000_000_000, 100_000_000_000_000_000,
	1_000_000_000_000_000_000, 10_000_000_000_000_000_000,
}

// Pow10 返回 10^n，n 超过 u64 可表示范围时报溢出。
func Pow10(n uint32) (uint64, error) {
	if n >= uint32(len(pow10)) {
		return 0, ErrOverflow
	}
	return pow10[n], nil
}

// Mul a*b，溢出返回 ErrOverflow。
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Add a+b，溢出返回 ErrOverflow。
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// SubSat 饱和减法：a < b 时返回 0。
func SubSat(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// MulDiv 计算 a*b/c（整数截断），中间值按 128 位处理。
// 商超出 u64 时返回 ErrOverflow。
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		// bits.Div64 panics when the quotient does not fit.
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, c)
	return q, nil
}
