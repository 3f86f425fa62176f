package segsieve

import (
	"cmp"
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/tamirms/segsieve/internal/bootstrap"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG seeded from the test name, so every test gets a
// distinct but reproducible stream.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// referencePrimes returns the primes <= n from the single-threaded sieve.
func referencePrimes(n uint64) []uint64 {
	return bootstrap.Sieve(n)
}

// mustCompute runs ComputePrimes and fails the test on error.
func mustCompute(t testing.TB, n uint64, opts ...Option) *Result {
	t.Helper()
	res, err := ComputePrimes(t.Context(), n, opts...)
	if err != nil {
		t.Fatalf("ComputePrimes(%d): %v", n, err)
	}
	return res
}

// verifyPrimes checks got against the reference sieve, reporting the first
// mismatch rather than dumping both slices.
func verifyPrimes(t testing.TB, n uint64, got []uint64) {
	t.Helper()
	want := referencePrimes(n)
	if len(got) != len(want) {
		t.Fatalf("n=%d: got %d primes, want %d", n, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("n=%d: primes[%d] = %d, want %d", n, i, got[i], want[i])
		}
	}
}

// writeAndOpen writes res to a temp table and opens it.
func writeAndOpen(t testing.TB, res *Result, opts ...TableOption) *Table {
	t.Helper()
	path := filepath.Join(t.TempDir(), "primes.sgsv")
	if err := WriteTable(path, res, opts...); err != nil {
		t.Fatalf("WriteTable: %v", err)
	}
	tbl, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

// sieveEvent is one recorded claim, sieve or merge.
type sieveEvent struct {
	worker   int
	start    uint64
	end      uint64
	progress uint64
	count    int
}

// recordingObserver records every engine event. Safe for concurrent use.
type recordingObserver struct {
	mu         sync.Mutex
	claims     []sieveEvent
	sieves     []sieveEvent
	merges     []sieveEvent
	backoffs   int
	mergeDelay time.Duration
}

func (o *recordingObserver) OnClaim(worker int, start, end, progress uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claims = append(o.claims, sieveEvent{worker: worker, start: start, end: end, progress: progress})
}

func (o *recordingObserver) OnBackoff(int, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.backoffs++
}

func (o *recordingObserver) OnSieve(worker int, start, end, progress uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sieves = append(o.sieves, sieveEvent{worker: worker, start: start, end: end, progress: progress})
}

func (o *recordingObserver) OnMerge(start, end uint64, count int) {
	if o.mergeDelay > 0 {
		time.Sleep(o.mergeDelay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.merges = append(o.merges, sieveEvent{start: start, end: end, count: count})
}

// sortedClaims returns the recorded claims ordered by start.
func (o *recordingObserver) sortedClaims() []sieveEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := slices.Clone(o.claims)
	slices.SortFunc(out, func(a, b sieveEvent) int {
		return cmp.Compare(a.start, b.start)
	})
	return out
}
