package segsieve

// Observer receives engine events for instrumentation and testing.
//
// OnClaim, OnBackoff and OnSieve are called from worker goroutines and may run
// concurrently; OnMerge is called from the merge goroutine only. Callbacks run
// synchronously on the engine's critical path, so slow observers slow the run.
type Observer interface {
	// OnClaim is called after a worker claims [start, end]. progress is the
	// value the frontier gate checked.
	OnClaim(worker int, start, end, progress uint64)

	// OnBackoff is called when a claim was refused because progress was too
	// low to sieve the next segment.
	OnBackoff(worker int, progress uint64)

	// OnSieve is called just before a worker marks composites in [start, end]
	// using the primes visible up to progress.
	OnSieve(worker int, start, end, progress uint64)

	// OnMerge is called after the segment [start, end] containing count primes
	// has been appended to the prime sequence.
	OnMerge(start, end uint64, count int)
}

type noopObserver struct{}

func (noopObserver) OnClaim(int, uint64, uint64, uint64) {}
func (noopObserver) OnBackoff(int, uint64)               {}
func (noopObserver) OnSieve(int, uint64, uint64, uint64) {}
func (noopObserver) OnMerge(uint64, uint64, int)         {}
