package segsieve

import (
	"sync"
	"sync/atomic"
)

// view is a stable snapshot of the prime sequence: primes holds every prime
// <= progress. The slice is capped, so appends by the merger never alias it.
type view struct {
	primes   []uint64
	progress uint64
}

// progressState publishes the merged prime sequence to workers.
//
// The merge goroutine is the only writer. It appends to its own slice header
// and hands the result to publish; elements below visible are never written
// again, so readers may traverse a snapshot without holding the lock.
type progressState struct {
	mu       sync.RWMutex
	primes   []uint64
	visible  int // marker: primes[:visible] is readable by workers
	progress uint64

	// current mirrors progress for the lock-free frontier gate.
	current atomic.Uint64
}

func newProgressState(seed []uint64, progress uint64) *progressState {
	s := &progressState{
		primes:   seed,
		visible:  len(seed),
		progress: progress,
	}
	s.current.Store(progress)
	return s
}

// load returns the current progress without locking.
func (s *progressState) load() uint64 {
	return s.current.Load()
}

// snapshot returns the primes and progress as of the last publish.
func (s *progressState) snapshot() view {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{
		primes:   s.primes[:s.visible:s.visible],
		progress: s.progress,
	}
}

// publish advances progress and the visible marker together.
// primes must extend the previously published sequence.
func (s *progressState) publish(primes []uint64, progress uint64) {
	s.mu.Lock()
	s.primes = primes
	s.visible = len(primes)
	s.progress = progress
	s.current.Store(progress)
	s.mu.Unlock()
}
