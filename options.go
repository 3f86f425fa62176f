package segsieve

import (
	"io"
	"log/slog"
)

const (
	// MaxUpperBound is the largest accepted upper bound. Every prime below it
	// fits in a uint32 and squaring any candidate divisor stays below 2^64.
	MaxUpperBound = uint64(4_250_000_000)

	// DefaultWorkers is the default number of segment workers.
	DefaultWorkers = 16

	// DefaultChunkSize is the default number of integers per segment.
	DefaultChunkSize = uint64(100_000)
)

// Option is a functional option for configuring a sieve run.
type Option func(*sieveConfig)

type sieveConfig struct {
	workers   int
	chunkSize uint64
	logger    *slog.Logger
	observer  Observer
}

func defaultSieveConfig() *sieveConfig {
	return &sieveConfig{
		workers:   DefaultWorkers,
		chunkSize: DefaultChunkSize,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:  noopObserver{},
	}
}

// WithWorkers sets the number of segment workers. Must be at least 1.
// The effective count is capped at the number of segments in the range.
func WithWorkers(n int) Option {
	return func(c *sieveConfig) {
		c.workers = n
	}
}

// WithChunkSize sets the number of integers each worker sieves per claim.
// Must be at least 1. Values larger than the upper bound are clamped.
func WithChunkSize(size uint64) Option {
	return func(c *sieveConfig) {
		c.chunkSize = size
	}
}

// WithLogger sets the structured logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *sieveConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver installs an instrumentation hook. See Observer.
func WithObserver(o Observer) Option {
	return func(c *sieveConfig) {
		if o == nil {
			o = noopObserver{}
		}
		c.observer = o
	}
}
