// Package safe provides overflow-checked int64 arithmetic for the
// fixed-point accounting path. A notional that silently wraps corrupts
// every balance after it, so overflow panics instead.
package safe

import (
	"math"
	"math/bits"
)

// Add returns a+b, panicking on overflow.
func Add(a, b int64) int64 {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		panic("safe: add overflow")
	}
	return sum
}

// Sub returns a-b, panicking on overflow.
func Sub(a, b int64) int64 {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		panic("safe: sub overflow")
	}
	return diff
}

// Mul returns a*b, panicking on overflow. The check runs on the
// 128-bit product of the magnitudes.
func Mul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	hi, lo := bits.Mul64(unsignedAbs(a), unsignedAbs(b))
	neg := (a < 0) != (b < 0)
	limit := uint64(math.MaxInt64)
	if neg {
		limit = 1 << 63
	}
	if hi != 0 || lo > limit {
		panic("safe: mul overflow")
	}
	if neg {
		return int64(-lo)
	}
	return int64(lo)
}

// MulDiv computes a*b/den without intermediate overflow as long as the
// true result fits in int64, by splitting a into den-sized chunks.
func MulDiv(a, b, den int64) int64 {
	if den == 0 {
		panic("safe: muldiv by zero")
	}
	q := a / den
	r := a % den
	return Add(Mul(q, b), Mul(r, b)/den)
}

func unsignedAbs(v int64) uint64 {
	if v < 0 {
		// Wraps correctly for MinInt64: its magnitude is 1<<63.
		return uint64(-v)
	}
	return uint64(v)
}
