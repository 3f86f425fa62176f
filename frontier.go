package segsieve

import (
	"sync"

	intbits "github.com/tamirms/segsieve/internal/bits"
)

// chunk is an inclusive integer range [start, end].
type chunk struct {
	start uint64
	end   uint64
}

// claimStatus is the outcome of a frontier claim.
type claimStatus int

const (
	// claimReady means the chunk was assigned to the caller.
	claimReady claimStatus = iota

	// claimNotReady means the next chunk needs more merged primes first.
	// The frontier did not move; the caller should wait for progress.
	claimNotReady

	// claimExhausted means every integer up to the upper bound is assigned.
	claimExhausted
)

func (s claimStatus) String() string {
	switch s {
	case claimReady:
		return "ready"
	case claimNotReady:
		return "not-ready"
	case claimExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// frontier hands out disjoint, consecutive chunks of the sieve range.
type frontier struct {
	mu        sync.Mutex
	next      uint64 // highest integer already assigned
	upper     uint64
	chunkSize uint64
	progress  func() uint64
}

func newFrontier(start, upper, chunkSize uint64, progress func() uint64) *frontier {
	return &frontier{
		next:      start,
		upper:     upper,
		chunkSize: chunkSize,
		progress:  progress,
	}
}

// claim assigns the next chunk if its divisors are known.
//
// Sieving up to end needs every prime <= sqrt(end), which holds once
// progress*progress > end. When the gate fails the frontier is left unchanged.
// The returned progress is the value the gate checked.
func (f *frontier) claim() (chunk, uint64, claimStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.next >= f.upper {
		return chunk{}, 0, claimExhausted
	}

	end := min(intbits.SatAdd64(f.next, f.chunkSize), f.upper)
	progress := f.progress()
	if intbits.SatMul64(progress, progress) <= end {
		return chunk{}, progress, claimNotReady
	}

	c := chunk{start: f.next + 1, end: end}
	f.next = end
	return c, progress, claimReady
}

// value returns the highest integer assigned so far.
func (f *frontier) value() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}
