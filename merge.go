package segsieve

import (
	"context"
	"fmt"
	"log/slog"

	sieveerrors "github.com/tamirms/segsieve/errors"
)

// runMerger is the merge goroutine: the only writer of the prime sequence.
//
// Workers finish out of order, so finished segments wait in pending (keyed by
// start) until the segment starting at progress+1 arrives. Segments are
// therefore appended strictly in ascending order, each exactly once.
func (e *engine) runMerger(ctx context.Context) error {
	pending := make(map[uint64]*segment, e.workers)
	batch := make([]*segment, 0, e.workers)

	for e.merged < e.upper {
		if err := e.results.bell.wait(ctx); err != nil {
			return err
		}

		batch = e.results.drain(batch[:0])
		for i, seg := range batch {
			batch[i] = nil
			if err := e.admit(pending, seg); err != nil {
				return err
			}
		}

		if e.mergeReady(pending) {
			for _, w := range e.wakes {
				w.ring()
			}
			if e.phase() == phaseDispatching && e.frontier.value() >= e.upper {
				e.setPhase(phaseDraining)
			}
		}
	}

	if len(pending) != 0 {
		return fmt.Errorf("%d segments left unmerged at progress %d: %w",
			len(pending), e.merged, sieveerrors.ErrProtocolViolation)
	}
	return nil
}

// admit adds a drained segment to the pending set after checking that it
// lies beyond progress, inside the range, and was not seen before.
func (e *engine) admit(pending map[uint64]*segment, seg *segment) error {
	if seg.start <= e.merged || seg.end < seg.start || seg.end > e.upper {
		return fmt.Errorf("segment [%d, %d] outside unmerged range (%d, %d]: %w",
			seg.start, seg.end, e.merged, e.upper, sieveerrors.ErrProtocolViolation)
	}
	if _, dup := pending[seg.start]; dup {
		return fmt.Errorf("segment starting at %d submitted twice: %w",
			seg.start, sieveerrors.ErrProtocolViolation)
	}
	pending[seg.start] = seg
	return nil
}

// mergeReady appends every contiguous pending segment starting at
// progress+1, releasing each bitmap exactly once. Reports whether progress
// advanced.
func (e *engine) mergeReady(pending map[uint64]*segment) bool {
	advanced := false
	for {
		seg, ok := pending[e.merged+1]
		if !ok {
			return advanced
		}
		delete(pending, seg.start)

		before := len(e.seq)
		for i, composite := range seg.composite {
			n := seg.start + uint64(i)
			if !composite && n >= 2 {
				e.seq = append(e.seq, n)
			}
		}
		e.digestBuf = foldPrimes(e.digest, e.digestBuf, e.seq[before:])

		e.bitmaps.put(seg.composite)
		seg.composite = nil

		e.merged = seg.end
		e.progress.publish(e.seq, e.merged)
		e.merges.Add(1)
		advanced = true

		count := len(e.seq) - before
		e.observer.OnMerge(seg.start, seg.end, count)
		e.logger.Debug("merged segment",
			slog.Uint64("start", seg.start),
			slog.Uint64("end", seg.end),
			slog.Int("primes", count))
	}
}
