// Package errors defines all exported error sentinels for the segsieve library.
//
// This is the single source of truth for error values. Both the top-level
// segsieve package and the internal packages import from here, ensuring
// errors.Is checks work across package boundaries.
package errors

import "errors"

// Input errors, returned before any worker is started.
var (
	ErrInputOutOfRange  = errors.New("segsieve: upper bound exceeds maximum (4250000000)")
	ErrInvalidWorkers   = errors.New("segsieve: worker count must be at least 1")
	ErrInvalidChunkSize = errors.New("segsieve: chunk size must be at least 1")
)

// Engine errors. A protocol violation is an internal invariant break and is
// never retried.
var (
	ErrProtocolViolation = errors.New("segsieve: segment protocol violation")
)

// Table errors
var (
	ErrEmptyResult      = errors.New("segsieve: cannot write table from nil result")
	ErrInvalidBlockSize = errors.New("segsieve: primes per block must be in [1, 2^31)")
	ErrInvalidMagic     = errors.New("segsieve: invalid magic number")
	ErrInvalidVersion   = errors.New("segsieve: unsupported version")
	ErrChecksumFailed   = errors.New("segsieve: table checksum verification failed")
	ErrTruncatedFile    = errors.New("segsieve: table file is truncated")
	ErrCorruptedTable   = errors.New("segsieve: table data is corrupted")
	ErrTableClosed      = errors.New("segsieve: table is closed")
	ErrIndexOutOfRange  = errors.New("segsieve: prime index out of range")
)
