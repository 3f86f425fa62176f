// Package bits provides overflow-safe integer primitives for sieve bounds.
package bits

import (
	"math"
	"math/bits"
)

// SatMul64 returns a*b, saturating at math.MaxUint64 instead of wrapping.
// Uses the full 128-bit product so the check is exact.
func SatMul64(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// SatAdd64 returns a+b, saturating at math.MaxUint64 instead of wrapping.
func SatAdd64(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

// Sqrt64 returns floor(sqrt(n)).
// The float estimate is corrected in both directions, so the result is exact
// for every uint64 including values above 2^53.
func Sqrt64(n uint64) uint64 {
	if n < 2 {
		return n
	}
	r := uint64(math.Sqrt(float64(n)))
	for !squareFits(r, n) {
		r--
	}
	for squareFits(r+1, n) {
		r++
	}
	return r
}

// squareFits reports whether r*r <= n without wrapping.
func squareFits(r, n uint64) bool {
	hi, lo := bits.Mul64(r, r)
	return hi == 0 && lo <= n
}

// CeilMultiple returns the smallest multiple of p that is >= n, saturating
// at math.MaxUint64. p must be non-zero.
func CeilMultiple(n, p uint64) uint64 {
	q := n / p
	if n%p != 0 {
		q++
	}
	return SatMul64(q, p)
}
