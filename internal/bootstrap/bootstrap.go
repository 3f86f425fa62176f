// Package bootstrap implements the single-threaded dense sieve that seeds the
// concurrent engine and serves as its correctness reference.
package bootstrap

import (
	"math/bits"

	intbits "github.com/tamirms/segsieve/internal/bits"
)

// Sieve returns every prime in [1, bound] in ascending order.
//
// Composite marking for each prime p starts at p*p: any smaller multiple of p
// has a prime factor below p and was already marked.
func Sieve(bound uint64) []uint64 {
	if bound < 2 {
		return []uint64{}
	}

	composite := make([]bool, bound+1)
	primes := make([]uint64, 0, estimateCount(bound))
	for n := uint64(2); n <= bound; n++ {
		if composite[n] {
			continue
		}
		primes = append(primes, n)
		for m := intbits.SatMul64(n, n); m <= bound; m += n {
			composite[m] = true
		}
	}
	return primes
}

// Bound returns the bootstrap threshold B for a given chunk size.
//
// B starts at 2*floor(sqrt(chunkSize)) and is raised until B*B > B+chunkSize,
// so that the first chunk [B+1, B+chunkSize] can be sieved using only the
// primes <= B. For chunkSize >= 4 the starting value already satisfies this.
func Bound(chunkSize uint64) uint64 {
	b := 2 * intbits.Sqrt64(chunkSize)
	if b < 2 {
		b = 2
	}
	for !squareExceeds(b, chunkSize) {
		b++
	}
	return b
}

// squareExceeds reports whether b*b > b+c using exact 128-bit comparison.
func squareExceeds(b, c uint64) bool {
	sqHi, sqLo := bits.Mul64(b, b)
	sumLo, sumHi := bits.Add64(b, c, 0)
	if sqHi != sumHi {
		return sqHi > sumHi
	}
	return sqLo > sumLo
}

// estimateCount returns an upper estimate of pi(n) for slice preallocation.
func estimateCount(n uint64) int {
	if n < 64 {
		return 18
	}
	// pi(n) < 1.26 n/ln(n); ln(n) >= (bitlen-1)*ln(2).
	ln := float64(bits.Len64(n)-1) * 0.6931471805599453
	return int(1.26*float64(n)/ln) + 1
}
