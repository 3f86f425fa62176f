package segsieve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sieveerrors "github.com/tamirms/segsieve/errors"
	"github.com/tamirms/segsieve/internal/bootstrap"
	"github.com/tamirms/segsieve/internal/timing"
)

// Result is the outcome of a sieve run.
type Result struct {
	// UpperBound is the inclusive bound the run sieved to.
	UpperBound uint64

	// Primes holds every prime in [1, UpperBound], strictly ascending.
	Primes []uint64

	// Digest is SequenceDigest(Primes), computed while merging.
	Digest uint64

	Stats Stats
}

// Stats describes how a run was executed.
type Stats struct {
	Workers        int    // effective worker count (0 when Shortcut)
	ChunkSize      uint64 // effective chunk size
	BootstrapBound uint64 // primes up to here came from the bootstrap sieve
	ChunksClaimed  uint64
	ChunksMerged   uint64
	Backoffs       uint64 // claims refused by the progress gate
	Shortcut       bool   // true when the bootstrap sieve answered alone
	Elapsed        time.Duration
}

// Primes returns every prime in [1, upperBound] in ascending order using the
// default worker count and chunk size.
//
// Returns sieveerrors.ErrInputOutOfRange if upperBound > MaxUpperBound.
func Primes(upperBound uint64) ([]uint64, error) {
	res, err := ComputePrimes(context.Background(), upperBound)
	if err != nil {
		return nil, err
	}
	return res.Primes, nil
}

// ComputePrimes returns every prime in [1, upperBound] using a segmented
// sieve spread across a pool of workers.
//
// Primes up to a small bootstrap bound derived from the chunk size are found
// single-threaded. If upperBound does not exceed that bound no worker is
// started. Otherwise workers sieve consecutive chunks concurrently and a merge
// goroutine appends them in order.
//
// All validation happens before any goroutine starts. Cancelling ctx aborts
// the run and returns ctx's error.
func ComputePrimes(ctx context.Context, upperBound uint64, opts ...Option) (*Result, error) {
	if upperBound > MaxUpperBound {
		return nil, fmt.Errorf("upper bound %d: %w", upperBound, sieveerrors.ErrInputOutOfRange)
	}

	cfg := defaultSieveConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.workers < 1 {
		return nil, sieveerrors.ErrInvalidWorkers
	}
	if cfg.chunkSize < 1 {
		return nil, sieveerrors.ErrInvalidChunkSize
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timer := timing.Start(cfg.logger, "sieve")

	chunkSize := min(cfg.chunkSize, MaxUpperBound)
	bound := bootstrap.Bound(chunkSize)
	cfg.logger.Debug("sieve phase",
		slog.String("phase", phaseBootstrapping.String()),
		slog.Uint64("bootstrapBound", bound),
		slog.Uint64("upper", upperBound))

	if upperBound <= bound {
		primes := bootstrap.Sieve(upperBound)
		res := &Result{
			UpperBound: upperBound,
			Primes:     primes,
			Digest:     SequenceDigest(primes),
			Stats: Stats{
				ChunkSize:      chunkSize,
				BootstrapBound: bound,
				Shortcut:       true,
			},
		}
		res.Stats.Elapsed = timer.Stop()
		return res, nil
	}

	// A chunk never extends past upperBound, and there are never more
	// workers than chunks.
	chunkSize = min(chunkSize, upperBound-bound)
	numChunks := (upperBound - bound + chunkSize - 1) / chunkSize
	workers := cfg.workers
	if uint64(workers) > numChunks {
		workers = int(numChunks)
	}

	seed := bootstrap.Sieve(bound)
	e := newEngine(cfg, upperBound, chunkSize, workers, seed, bound)
	primes, digest, err := e.run(ctx)
	if err != nil {
		return nil, fmt.Errorf("sieve [1, %d]: %w", upperBound, err)
	}

	res := &Result{
		UpperBound: upperBound,
		Primes:     primes,
		Digest:     digest,
		Stats: Stats{
			Workers:        workers,
			ChunkSize:      chunkSize,
			BootstrapBound: bound,
			ChunksClaimed:  e.claims.Load(),
			ChunksMerged:   e.merges.Load(),
			Backoffs:       e.backoffs.Load(),
		},
	}
	res.Stats.Elapsed = timer.Stop()
	cfg.logger.Info("sieve complete",
		slog.Uint64("upper", upperBound),
		slog.Int("primes", len(primes)),
		slog.Int("workers", workers),
		slog.Uint64("chunks", res.Stats.ChunksMerged),
		slog.Uint64("backoffs", res.Stats.Backoffs))
	return res, nil
}
