package bootstrap

import (
	"slices"
	"testing"
)

// trialDivision is an independent oracle for small n.
func trialDivision(n uint64) bool {
	if n < 2 {
		return false
	}
	for d := uint64(2); d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

func TestSieveSmallBounds(t *testing.T) {
	tests := []struct {
		bound uint64
		want  []uint64
	}{
		{0, []uint64{}},
		{1, []uint64{}},
		{2, []uint64{2}},
		{3, []uint64{2, 3}},
		{10, []uint64{2, 3, 5, 7}},
		{30, []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}},
	}
	for _, tt := range tests {
		got := Sieve(tt.bound)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Sieve(%d) = %v, want %v", tt.bound, got, tt.want)
		}
	}
}

func TestSieveMatchesTrialDivision(t *testing.T) {
	const bound = 20_000
	primes := Sieve(bound)

	var want []uint64
	for n := uint64(0); n <= bound; n++ {
		if trialDivision(n) {
			want = append(want, n)
		}
	}
	if !slices.Equal(primes, want) {
		t.Fatalf("Sieve(%d): got %d primes, want %d", bound, len(primes), len(want))
	}
}

func TestSieveKnownCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large reference sieve in short mode")
	}
	counts := map[uint64]int{
		100:       25,
		1000:      168,
		10_000:    1229,
		100_000:   9592,
		1_000_000: 78498,
	}
	for bound, want := range counts {
		if got := len(Sieve(bound)); got != want {
			t.Errorf("pi(%d) = %d, want %d", bound, got, want)
		}
	}
}

func TestBound(t *testing.T) {
	for _, c := range []uint64{1, 2, 3, 4, 9, 100, 100_000, 4_000_000, 4_250_000_000} {
		b := Bound(c)
		if b < 2 {
			t.Errorf("Bound(%d) = %d, want >= 2", c, b)
		}
		if !squareExceeds(b, c) {
			t.Errorf("Bound(%d) = %d does not satisfy B*B > B+c", c, b)
		}
	}
	if got := Bound(100_000); got != 632 {
		t.Errorf("Bound(100000) = %d, want 632", got)
	}
}

func TestBoundAvoidsStallForTinyChunks(t *testing.T) {
	// 2*floor(sqrt(2)) = 2 and 2*2 == 2+2, so the gate would never open.
	if got := Bound(2); got != 3 {
		t.Errorf("Bound(2) = %d, want 3", got)
	}
}
