package segsieve

import (
	"github.com/cespare/xxhash/v2"

	"github.com/tamirms/segsieve/internal/encoding"
)

// digestBatch is the number of primes encoded per hasher write.
const digestBatch = 512

// SequenceDigest returns the xxHash64 of primes encoded as consecutive
// little-endian uint64 values. It equals Result.Digest for the same sequence,
// regardless of how the sequence was produced.
func SequenceDigest(primes []uint64) uint64 {
	d := xxhash.New()
	foldPrimes(d, nil, primes)
	return d.Sum64()
}

// foldPrimes streams primes into d and returns the scratch buffer for reuse.
// Must be called in sequence order for deterministic results.
func foldPrimes(d *xxhash.Digest, buf []byte, primes []uint64) []byte {
	for len(primes) > 0 {
		n := min(len(primes), digestBatch)
		buf = encoding.PutUint64s(buf[:0], primes[:n])
		if _, err := d.Write(buf); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
		primes = primes[n:]
	}
	return buf
}
