package segsieve

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	sieveerrors "github.com/tamirms/segsieve/errors"
	"github.com/tamirms/segsieve/internal/encoding"
)

// DefaultPrimesPerBlock is the default number of primes per table block.
const DefaultPrimesPerBlock = 1 << 16

// TableOption is a functional option for configuring table writes.
type TableOption func(*tableConfig)

type tableConfig struct {
	primesPerBlock int
	workers        int
}

func defaultTableConfig() *tableConfig {
	return &tableConfig{
		primesPerBlock: DefaultPrimesPerBlock,
		workers:        runtime.GOMAXPROCS(0),
	}
}

// WithPrimesPerBlock sets the block granularity of the table. Smaller blocks
// make the block index larger and in-block searches shorter.
func WithPrimesPerBlock(n int) TableOption {
	return func(c *tableConfig) {
		c.primesPerBlock = n
	}
}

// WithTableWorkers sets how many goroutines encode blocks in parallel.
func WithTableWorkers(n int) TableOption {
	return func(c *tableConfig) {
		c.workers = n
	}
}

// tableWriter handles writing a table to disk using mmap-based zero-copy writes.
// File layout: [Header 64B][Block Index (N+1)×8B][Prime Region Count×EntrySize][Footer 32B]
type tableWriter struct {
	file   *os.File
	mmap   mmap.MMap
	data   []byte
	layout tableLayout
	header header

	regionHash uint64 // set by writePrimes
}

// WriteTable writes res to path as a checksummed prime table.
// An existing file at path is replaced. On error the partial file is removed.
func WriteTable(path string, res *Result, opts ...TableOption) error {
	if res == nil {
		return sieveerrors.ErrEmptyResult
	}
	if res.UpperBound > MaxUpperBound {
		return sieveerrors.ErrInputOutOfRange
	}

	cfg := defaultTableConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.primesPerBlock < 1 || cfg.primesPerBlock > math.MaxInt32 {
		return sieveerrors.ErrInvalidBlockSize
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}

	if err := checkSequence(res.Primes, res.UpperBound); err != nil {
		return err
	}

	count := uint64(len(res.Primes))
	numBlocks := numBlocksFor(count, uint32(cfg.primesPerBlock))
	if numBlocks > math.MaxUint32 {
		return sieveerrors.ErrInvalidBlockSize
	}

	tw, err := newTableWriter(path, header{
		Magic:          magic,
		Version:        version,
		EntrySize:      uint8(encoding.EntrySizeFor(res.UpperBound)),
		UpperBound:     res.UpperBound,
		Count:          count,
		PrimesPerBlock: uint32(cfg.primesPerBlock),
		NumBlocks:      uint32(numBlocks),
		Digest:         res.Digest,
	})
	if err != nil {
		return err
	}

	if err := tw.writePrimes(res.Primes, cfg.workers); err != nil {
		return errors.Join(err, tw.close(), os.Remove(path))
	}
	if err := tw.finalize(); err != nil {
		return errors.Join(err, os.Remove(path))
	}
	return nil
}

// newTableWriter creates the file, reserves its exact size and maps it.
func newTableWriter(path string, h header) (*tableWriter, error) {
	layout := layoutFor(&h)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create table file: %w", err)
	}

	// Reserve disk blocks to prevent SIGBUS on disk full
	if err := reserveFile(file, int64(layout.size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	mm, err := mmap.MapRegion(file, int(layout.size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	tw := &tableWriter{
		file:   file,
		mmap:   mm,
		data:   []byte(mm),
		layout: layout,
		header: h,
	}
	populateForWrite(tw.data[layout.primeRegionOffset:layout.footerOffset])
	return tw, nil
}

// writePrimes encodes every block into the prime region and the block index.
//
// Blocks occupy disjoint byte ranges, so they are encoded in parallel; each
// goroutine hashes its block while the bytes are hot in cache. The per-block
// hashes are then folded into the region hash strictly in block order.
func (tw *tableWriter) writePrimes(primes []uint64, workers int) error {
	h := &tw.header
	entrySize := h.entrySize()
	perBlock := int(h.PrimesPerBlock)
	numBlocks := int(h.NumBlocks)
	blockHashes := make([]uint64, numBlocks)

	var g errgroup.Group
	g.SetLimit(workers)
	for b := range numBlocks {
		g.Go(func() error {
			lo := b * perBlock
			hi := min(lo+perBlock, len(primes))
			return tw.writeBlock(b, lo, primes[lo:hi], entrySize, blockHashes)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Sentinel: one past the largest value the table can hold.
	sentinelOff := tw.layout.blockIndexOffset + uint64(numBlocks)*blockIndexEntrySize
	binary.LittleEndian.PutUint64(tw.data[sentinelOff:], h.UpperBound+1)

	regionHasher := xxhash.New()
	var buf [8]byte
	for _, bh := range blockHashes {
		binary.LittleEndian.PutUint64(buf[:], bh)
		if _, err := regionHasher.Write(buf[:]); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
	}
	tw.regionHash = regionHasher.Sum64()
	return nil
}

// writeBlock encodes one block and records its index entry and hash.
func (tw *tableWriter) writeBlock(b, first int, block []uint64, entrySize int, hashes []uint64) error {
	start := tw.layout.primeRegionOffset + uint64(first)*uint64(entrySize)
	region := tw.data[start : start+uint64(len(block))*uint64(entrySize)]
	basePtr := unsafe.Pointer(unsafe.SliceData(region))
	for i, p := range block {
		encoding.WriteEntry(basePtr, i, entrySize, p)
	}

	idxOff := tw.layout.blockIndexOffset + uint64(b)*blockIndexEntrySize
	binary.LittleEndian.PutUint64(tw.data[idxOff:], block[0])
	hashes[b] = xxhash.Sum64(region)
	return nil
}

// finalize writes the header and footer, then flushes and unmaps the file.
// On error, delegates to close() for idempotent cleanup.
// On success, nils mmap/file so that close() is a safe no-op.
func (tw *tableWriter) finalize() error {
	tw.header.encodeTo(tw.data[0:headerSize])

	ftr := footer{
		PrimeRegionHash: tw.regionHash,
		HeaderHash:      xxh3.Hash(tw.data[:tw.layout.primeRegionOffset]),
	}
	ftr.encodeTo(tw.data[tw.layout.footerOffset:])

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := tw.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, tw.close())
	}

	unmapErr := tw.mmap.Unmap()
	tw.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, tw.close())
	}

	closeErr := tw.file.Close()
	tw.file = nil
	return closeErr
}

// close closes the writer without finalizing (for error cleanup).
// Idempotent: safe to call multiple times.
func (tw *tableWriter) close() error {
	var unmapErr error
	if tw.mmap != nil {
		unmapErr = tw.mmap.Unmap()
		tw.mmap = nil
	}
	var closeErr error
	if tw.file != nil {
		closeErr = tw.file.Close()
		tw.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}

// checkSequence verifies that primes is strictly increasing, starts at 2 or
// above, and does not exceed upper.
func checkSequence(primes []uint64, upper uint64) error {
	prev := uint64(1)
	for i, p := range primes {
		if p <= prev || p > upper {
			return fmt.Errorf("entry %d: value %d not in (%d, %d]: %w",
				i, p, prev, upper, sieveerrors.ErrCorruptedTable)
		}
		prev = p
	}
	return nil
}
