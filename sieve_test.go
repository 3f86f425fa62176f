package segsieve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	sieveerrors "github.com/tamirms/segsieve/errors"
	"github.com/tamirms/segsieve/internal/bootstrap"
)

// TestComputePrimesMatchesReference runs the full engine across worker counts
// and chunk sizes, comparing against the single-threaded sieve.
func TestComputePrimesMatchesReference(t *testing.T) {
	limits := []uint64{0, 1, 2, 3, 10, 97, 1000, 65_537}
	if !testing.Short() {
		limits = append(limits, 1_000_000)
	}
	workerCounts := []int{1, 4, 16}
	chunkSizes := []uint64{1, 2, 7, 1000, DefaultChunkSize}

	for _, n := range limits {
		for _, w := range workerCounts {
			for _, c := range chunkSizes {
				if c < 7 && n > 100_000 {
					continue
				}
				t.Run(fmt.Sprintf("n=%d/w=%d/c=%d", n, w, c), func(t *testing.T) {
					res := mustCompute(t, n, WithWorkers(w), WithChunkSize(c))
					verifyPrimes(t, n, res.Primes)
					if res.UpperBound != n {
						t.Errorf("UpperBound = %d, want %d", res.UpperBound, n)
					}
					if res.Digest != SequenceDigest(res.Primes) {
						t.Errorf("Digest = %#x, want SequenceDigest %#x", res.Digest, SequenceDigest(res.Primes))
					}
				})
			}
		}
	}
}

func TestKnownPrimeCounts(t *testing.T) {
	tests := []struct {
		n    uint64
		want int
	}{
		{10, 4},
		{100, 25},
		{1000, 168},
		{10_000, 1229},
		{1_000_000, 78_498},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			res := mustCompute(t, tt.n, WithChunkSize(500))
			if len(res.Primes) != tt.want {
				t.Fatalf("pi(%d) = %d, want %d", tt.n, len(res.Primes), tt.want)
			}
		})
	}
}

func TestPrimes(t *testing.T) {
	got, err := Primes(30)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}
	if !slices.Equal(got, want) {
		t.Fatalf("Primes(30) = %v, want %v", got, want)
	}

	if _, err := Primes(MaxUpperBound + 1); !errors.Is(err, sieveerrors.ErrInputOutOfRange) {
		t.Fatalf("Primes(MaxUpperBound+1) error = %v, want ErrInputOutOfRange", err)
	}
}

func TestBoundaryValues(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want []uint64
	}{
		{"Zero", 0, []uint64{}},
		{"One", 1, []uint64{}},
		{"Two", 2, []uint64{2}},
		{"PrimeUpperBoundIncluded", 97, nil},
		{"CompositeUpperBound", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Chunk size 3 gives bootstrap bound 3, so 97 and 100 go
			// through the workers.
			res := mustCompute(t, tt.n, WithChunkSize(3), WithWorkers(4))
			if res.Primes == nil {
				t.Fatal("Primes is nil, want non-nil slice")
			}
			if tt.want != nil && !slices.Equal(res.Primes, tt.want) {
				t.Fatalf("got %v, want %v", res.Primes, tt.want)
			}
			verifyPrimes(t, tt.n, res.Primes)
		})
	}

	t.Run("LastPrimeIsUpperBound", func(t *testing.T) {
		res := mustCompute(t, 7919, WithChunkSize(100))
		if last := res.Primes[len(res.Primes)-1]; last != 7919 {
			t.Fatalf("last prime = %d, want 7919", last)
		}
	})
}

func TestInputValidation(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		opts []Option
		want error
	}{
		{"AboveMax", MaxUpperBound + 1, nil, sieveerrors.ErrInputOutOfRange},
		{"MaxUint64", ^uint64(0), nil, sieveerrors.ErrInputOutOfRange},
		{"ZeroWorkers", 1000, []Option{WithWorkers(0)}, sieveerrors.ErrInvalidWorkers},
		{"NegativeWorkers", 1000, []Option{WithWorkers(-3)}, sieveerrors.ErrInvalidWorkers},
		{"ZeroChunk", 1000, []Option{WithChunkSize(0)}, sieveerrors.ErrInvalidChunkSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := &recordingObserver{}
			opts := append(tt.opts, WithObserver(obs))
			res, err := ComputePrimes(t.Context(), tt.n, opts...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Fatal("expected nil result on error")
			}
			if len(obs.claims) != 0 {
				t.Fatalf("%d chunks claimed before validation failed", len(obs.claims))
			}
		})
	}
}

// TestShortcut checks that inputs at or below the bootstrap bound never
// start a worker.
func TestShortcut(t *testing.T) {
	bound := bootstrap.Bound(DefaultChunkSize)
	for _, n := range []uint64{0, 1, 2, 500, bound} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			obs := &recordingObserver{}
			res := mustCompute(t, n, WithObserver(obs))
			verifyPrimes(t, n, res.Primes)
			if !res.Stats.Shortcut {
				t.Error("Stats.Shortcut = false, want true")
			}
			if res.Stats.Workers != 0 || res.Stats.ChunksClaimed != 0 {
				t.Errorf("Stats = %+v, want no workers and no claims", res.Stats)
			}
			if len(obs.claims) != 0 || len(obs.merges) != 0 {
				t.Errorf("observer saw %d claims and %d merges, want none", len(obs.claims), len(obs.merges))
			}
		})
	}

	t.Run("JustAboveBound", func(t *testing.T) {
		res := mustCompute(t, bound+1)
		if res.Stats.Shortcut {
			t.Fatal("Stats.Shortcut = true above the bootstrap bound")
		}
		if res.Stats.ChunksClaimed != 1 || res.Stats.Workers != 1 {
			t.Fatalf("Stats = %+v, want one chunk on one worker", res.Stats)
		}
		verifyPrimes(t, bound+1, res.Primes)
	})
}

// TestDeterminismAcrossWorkers checks that the sequence and digest do not
// depend on the worker count.
func TestDeterminismAcrossWorkers(t *testing.T) {
	const n = 300_000
	var (
		firstPrimes []uint64
		firstDigest uint64
	)
	for i, w := range []int{1, 4, 16} {
		res := mustCompute(t, n, WithWorkers(w), WithChunkSize(1000))
		if i == 0 {
			firstPrimes, firstDigest = res.Primes, res.Digest
			continue
		}
		if !slices.Equal(res.Primes, firstPrimes) {
			t.Fatalf("workers=%d: sequence differs from workers=1", w)
		}
		if res.Digest != firstDigest {
			t.Fatalf("workers=%d: digest %#x, want %#x", w, res.Digest, firstDigest)
		}
	}
}

func TestRunStats(t *testing.T) {
	// Bound(1000) = 62, so (62, 100000] splits into 100 chunks.
	res := mustCompute(t, 100_000, WithWorkers(4), WithChunkSize(1000))
	st := res.Stats
	if st.BootstrapBound != 62 {
		t.Errorf("BootstrapBound = %d, want 62", st.BootstrapBound)
	}
	if st.ChunksClaimed != 100 || st.ChunksMerged != 100 {
		t.Errorf("claimed %d, merged %d, want 100 each", st.ChunksClaimed, st.ChunksMerged)
	}
	if st.Workers != 4 || st.ChunkSize != 1000 {
		t.Errorf("Workers = %d, ChunkSize = %d, want 4 and 1000", st.Workers, st.ChunkSize)
	}
	if st.Elapsed <= 0 {
		t.Errorf("Elapsed = %v, want > 0", st.Elapsed)
	}

	t.Run("WorkersCappedAtChunks", func(t *testing.T) {
		// (62, 2062] is two chunks.
		res := mustCompute(t, 2062, WithWorkers(16), WithChunkSize(1000))
		if res.Stats.Workers != 2 {
			t.Fatalf("Workers = %d, want 2", res.Stats.Workers)
		}
	})

	t.Run("ChunkClampedToRange", func(t *testing.T) {
		// (62, 100] is shorter than one chunk.
		res := mustCompute(t, 100, WithChunkSize(1000))
		if res.Stats.ChunkSize != 38 || res.Stats.ChunksClaimed != 1 {
			t.Fatalf("Stats = %+v, want one chunk of 38", res.Stats)
		}
		verifyPrimes(t, 100, res.Primes)
	})
}

// TestProgressGate delays every merge so that workers outrun the merger,
// then checks that no segment was sieved before its divisors were merged.
func TestProgressGate(t *testing.T) {
	const n = 20_000
	obs := &recordingObserver{mergeDelay: 50 * time.Microsecond}
	res := mustCompute(t, n, WithWorkers(8), WithChunkSize(10), WithObserver(obs))
	verifyPrimes(t, n, res.Primes)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	for _, ev := range obs.sieves {
		if ev.progress*ev.progress <= ev.end {
			t.Fatalf("worker %d sieved [%d, %d] with progress %d", ev.worker, ev.start, ev.end, ev.progress)
		}
	}
	for _, ev := range obs.claims {
		if ev.progress*ev.progress <= ev.end {
			t.Fatalf("worker %d claimed [%d, %d] at progress %d", ev.worker, ev.start, ev.end, ev.progress)
		}
	}
	if uint64(obs.backoffs) != res.Stats.Backoffs {
		t.Errorf("observer saw %d backoffs, Stats reports %d", obs.backoffs, res.Stats.Backoffs)
	}
}

// TestClaimsPartitionRange checks that claims are disjoint, contiguous and
// cover (bootstrap bound, n] exactly.
func TestClaimsPartitionRange(t *testing.T) {
	const n = 50_000
	obs := &recordingObserver{}
	res := mustCompute(t, n, WithWorkers(6), WithChunkSize(333), WithObserver(obs))

	claims := obs.sortedClaims()
	next := res.Stats.BootstrapBound + 1
	for _, c := range claims {
		if c.start != next {
			t.Fatalf("claim [%d, %d] starts at %d, want %d", c.start, c.end, c.start, next)
		}
		if c.end < c.start || c.end-c.start+1 > res.Stats.ChunkSize {
			t.Fatalf("claim [%d, %d] has bad size for chunk %d", c.start, c.end, res.Stats.ChunkSize)
		}
		next = c.end + 1
	}
	if next != n+1 {
		t.Fatalf("claims end at %d, want %d", next-1, uint64(n))
	}
}

// TestMergeOrder checks that segments are merged in ascending order and
// their prime counts add up.
func TestMergeOrder(t *testing.T) {
	const n = 50_000
	obs := &recordingObserver{}
	res := mustCompute(t, n, WithWorkers(8), WithChunkSize(100), WithObserver(obs))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	next := res.Stats.BootstrapBound + 1
	total := len(bootstrap.Sieve(res.Stats.BootstrapBound))
	for _, m := range obs.merges {
		if m.start != next {
			t.Fatalf("merged [%d, %d], want start %d", m.start, m.end, next)
		}
		next = m.end + 1
		total += m.count
	}
	if total != len(res.Primes) {
		t.Fatalf("merge counts sum to %d, want %d", total, len(res.Primes))
	}
}

func TestCancellation(t *testing.T) {
	t.Run("BeforeStart", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		_, err := ComputePrimes(ctx, 1_000_000, WithChunkSize(1000))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})

	t.Run("MidRun", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		obs := &cancelObserver{after: 5, cancel: cancel}
		_, err := ComputePrimes(ctx, 1_000_000, WithChunkSize(100), WithWorkers(4), WithObserver(obs))
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}

// cancelObserver cancels the run after a number of merges.
type cancelObserver struct {
	noopObserver
	after  int
	merges int
	cancel context.CancelFunc
}

func (o *cancelObserver) OnMerge(uint64, uint64, int) {
	o.merges++
	if o.merges == o.after {
		o.cancel()
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mustCompute(t, 10_000, WithChunkSize(500), WithLogger(logger))

	out := buf.String()
	for _, want := range []string{"sieve complete", "merged segment", "phase=dispatching", "phase=done", "sieve took"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}
