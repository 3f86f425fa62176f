package segsieve

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// phase is the lifecycle stage of one sieve run.
type phase int32

const (
	phaseBootstrapping phase = iota
	phaseDispatching
	phaseDraining
	phaseDone
)

func (p phase) String() string {
	switch p {
	case phaseBootstrapping:
		return "bootstrapping"
	case phaseDispatching:
		return "dispatching"
	case phaseDraining:
		return "draining"
	case phaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// engine holds the shared state of one concurrent sieve run.
//
// Locking: frontier, progress and results each have their own lock. The
// fields under "merger-owned" are touched only by the merge goroutine.
type engine struct {
	upper     uint64
	chunkSize uint64
	workers   int
	logger    *slog.Logger
	observer  Observer

	frontier *frontier
	progress *progressState
	results  *resultQueue
	wakes    []signal
	bitmaps  *bitmapPool

	state    atomic.Int32
	claims   atomic.Uint64
	backoffs atomic.Uint64
	merges   atomic.Uint64

	// merger-owned
	seq       []uint64
	merged    uint64
	digest    *xxhash.Digest
	digestBuf []byte
}

// newEngine prepares a run over (seedBound, upper]. seed must hold every
// prime <= seedBound.
func newEngine(cfg *sieveConfig, upper, chunkSize uint64, workers int, seed []uint64, seedBound uint64) *engine {
	e := &engine{
		upper:     upper,
		chunkSize: chunkSize,
		workers:   workers,
		logger:    cfg.logger,
		observer:  cfg.observer,
		results:   newResultQueue(workers * workChanBufferMultiplier),
		wakes:     make([]signal, workers),
		bitmaps:   newBitmapPool(chunkSize),
		seq:       seed,
		merged:    seedBound,
		digest:    xxhash.New(),
	}
	e.progress = newProgressState(seed, seedBound)
	e.frontier = newFrontier(seedBound, upper, chunkSize, e.progress.load)
	for i := range e.wakes {
		e.wakes[i] = newSignal(true)
	}
	e.digestBuf = foldPrimes(e.digest, nil, seed)
	return e
}

// workChanBufferMultiplier sizes the result queue relative to the worker count.
const workChanBufferMultiplier = 2

func (e *engine) phase() phase {
	return phase(e.state.Load())
}

func (e *engine) setPhase(p phase) {
	e.state.Store(int32(p))
	e.logger.Debug("sieve phase",
		slog.String("phase", p.String()),
		slog.Uint64("progress", e.progress.load()),
		slog.Uint64("upper", e.upper))
}

// run starts the workers and the merger and waits for both to finish.
// The first error cancels the remaining goroutines.
func (e *engine) run(ctx context.Context) ([]uint64, uint64, error) {
	e.setPhase(phaseDispatching)

	g, gctx := errgroup.WithContext(ctx)
	for id := range e.workers {
		g.Go(func() error {
			return e.runWorker(gctx, id)
		})
	}
	g.Go(func() error {
		return e.runMerger(gctx)
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	e.setPhase(phaseDone)
	return e.seq, e.digest.Sum64(), nil
}
