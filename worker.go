package segsieve

import (
	"context"
	"fmt"

	sieveerrors "github.com/tamirms/segsieve/errors"
	intbits "github.com/tamirms/segsieve/internal/bits"
)

// runWorker is a segment worker goroutine.
//
// It waits on its wake signal, then claims and sieves chunks until a claim is
// refused. A refused claim sends it back to waiting; the merger rings every
// wake signal after progress advances, so refused claims never spin.
func (e *engine) runWorker(ctx context.Context, id int) error {
	wake := e.wakes[id]
	for {
		if err := wake.wait(ctx); err != nil {
			return err
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			c, progress, status := e.frontier.claim()
			if status == claimExhausted {
				return nil
			}
			if status == claimNotReady {
				e.backoffs.Add(1)
				e.observer.OnBackoff(id, progress)
				break
			}
			e.claims.Add(1)
			e.observer.OnClaim(id, c.start, c.end, progress)

			seg, err := e.sieveChunk(id, c)
			if err != nil {
				return err
			}
			e.results.push(seg)
		}
	}
}

// sieveChunk sieves one claimed chunk into a fresh pooled bitmap.
func (e *engine) sieveChunk(id int, c chunk) (*segment, error) {
	v := e.progress.snapshot()
	e.observer.OnSieve(id, c.start, c.end, v.progress)

	composite := e.bitmaps.get(c.end - c.start + 1)
	if err := sieveSegment(v, c.start, c.end, composite); err != nil {
		e.bitmaps.put(composite)
		return nil, err
	}
	return &segment{start: c.start, end: c.end, composite: composite}, nil
}

// sieveSegment marks composite[n-start] for every composite n in [start, end].
//
// For each prime p in the view with p*p <= end, multiples of p are marked from
// max(p*p, the first multiple >= start). Requires start >= 2 and
// len(composite) == end-start+1. Returns ErrProtocolViolation if the view does
// not contain every prime <= sqrt(end).
func sieveSegment(v view, start, end uint64, composite []bool) error {
	for _, p := range v.primes {
		sq := intbits.SatMul64(p, p)
		if sq > end {
			return nil
		}
		m := intbits.CeilMultiple(start, p)
		if m < sq {
			m = sq
		}
		for ; m <= end; m += p {
			composite[m-start] = true
		}
	}
	if intbits.SatMul64(v.progress, v.progress) > end {
		return nil
	}
	return fmt.Errorf("sieve [%d, %d] with primes up to %d: %w",
		start, end, v.progress, sieveerrors.ErrProtocolViolation)
}
