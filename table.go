package segsieve

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"
	"os"
	"sort"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"
	"github.com/zeebo/xxh3"

	sieveerrors "github.com/tamirms/segsieve/errors"
	"github.com/tamirms/segsieve/internal/encoding"
)

// minTableSize is the size of an empty table: header, sentinel-only block
// index and footer.
const minTableSize = headerSize + blockIndexEntrySize + footerSize

// Table is a read-only prime table produced by WriteTable.
//
// Thread Safety:
// - Len, At, PrimePi, Contains, Range and Verify are safe for concurrent use
// - Close is NOT safe to call concurrently with queries
// - After Close returns, queries report ErrTableClosed
type Table struct {
	mmap mmap.MMap
	data []byte

	header *header
	layout tableLayout

	// region is the prime region, Count × EntrySize bytes.
	region    []byte
	entrySize int

	closed atomic.Bool
}

// TableStats holds table statistics.
type TableStats struct {
	Count          uint64
	UpperBound     uint64
	NumBlocks      uint32
	PrimesPerBlock uint32
	EntrySize      int
	BytesPerPrime  float64
	TableSize      int64
}

// Open opens a prime table file for querying.
// It opens the file, memory-maps it, and closes the file descriptor.
func Open(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table file: %w", err)
	}
	defer file.Close()
	return OpenFile(file)
}

// OpenFile opens a prime table by memory-mapping the given file.
// The caller is responsible for closing f, which may happen as soon as
// OpenFile returns.
func OpenFile(f *os.File) (*Table, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat table file: %w", err)
	}
	fileSize := stat.Size()
	if fileSize < minTableSize {
		return nil, sieveerrors.ErrTruncatedFile
	}

	adviseSequential(f, fileSize)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap table file: %w", err)
	}

	t := &Table{
		mmap: mm,
		data: []byte(mm),
	}
	if err := t.initFromData(); err != nil {
		return nil, errors.Join(err, t.Close())
	}
	return t, nil
}

// OpenBytes creates a table from an in-memory byte slice.
// No file is opened or memory-mapped; Close is a no-op.
// The caller must ensure data is not modified while the Table is in use.
func OpenBytes(data []byte) (*Table, error) {
	if len(data) < minTableSize {
		return nil, sieveerrors.ErrTruncatedFile
	}
	t := &Table{data: data}
	if err := t.initFromData(); err != nil {
		return nil, err
	}
	return t, nil
}

// initFromData parses the header, checks the file size against the layout
// and validates the block index. The footer is left to Verify.
func (t *Table) initFromData() error {
	fileSize := uint64(len(t.data))

	hdr, err := decodeHeader(t.data[:headerSize])
	if err != nil {
		return err
	}

	// Bound Count by what could fit at all before doing layout arithmetic.
	if hdr.Count > fileSize/uint64(hdr.EntrySize) {
		return sieveerrors.ErrTruncatedFile
	}
	layout := layoutFor(hdr)
	if fileSize < layout.size {
		return sieveerrors.ErrTruncatedFile
	}
	if fileSize != layout.size {
		return sieveerrors.ErrCorruptedTable
	}

	t.header = hdr
	t.layout = layout
	t.entrySize = hdr.entrySize()
	t.region = t.data[layout.primeRegionOffset:layout.footerOffset]

	adviseWillNeed(t.data[layout.blockIndexOffset:layout.primeRegionOffset])

	// Lookups binary-search the block index, so it must be ordered.
	prev := uint64(0)
	for b := range uint64(hdr.NumBlocks) + 1 {
		first := t.blockFirst(b)
		if first <= prev {
			return sieveerrors.ErrCorruptedTable
		}
		prev = first
	}
	if prev != hdr.UpperBound+1 {
		return sieveerrors.ErrCorruptedTable
	}
	return nil
}

// blockFirst returns block index entry b: the first prime of block b, or
// the sentinel when b == NumBlocks.
func (t *Table) blockFirst(b uint64) uint64 {
	off := t.layout.blockIndexOffset + b*blockIndexEntrySize
	return binary.LittleEndian.Uint64(t.data[off:])
}

// blockBounds returns the entry range [lo, hi) covered by block b.
func (t *Table) blockBounds(b uint64) (lo, hi uint64) {
	per := uint64(t.header.PrimesPerBlock)
	lo = b * per
	hi = min(lo+per, t.header.Count)
	return lo, hi
}

func (t *Table) entry(i uint64) uint64 {
	return encoding.ReadEntry(t.region, int(i), t.entrySize)
}

// Close releases the mapping. Idempotent.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	if t.mmap != nil {
		return t.mmap.Unmap()
	}
	return nil
}

// Len returns the number of primes in the table.
func (t *Table) Len() uint64 {
	return t.header.Count
}

// UpperBound returns the inclusive bound the table was sieved to.
func (t *Table) UpperBound() uint64 {
	return t.header.UpperBound
}

// Digest returns the stored sequence digest.
func (t *Table) Digest() uint64 {
	return t.header.Digest
}

// At returns the i-th prime (0-based).
func (t *Table) At(i uint64) (uint64, error) {
	if t.closed.Load() {
		return 0, sieveerrors.ErrTableClosed
	}
	if i >= t.header.Count {
		return 0, fmt.Errorf("index %d, table holds %d: %w", i, t.header.Count, sieveerrors.ErrIndexOutOfRange)
	}
	return t.entry(i), nil
}

// PrimePi returns the number of primes <= x. Values above UpperBound count
// every prime in the table.
func (t *Table) PrimePi(x uint64) (uint64, error) {
	if t.closed.Load() {
		return 0, sieveerrors.ErrTableClosed
	}
	return t.primePi(x), nil
}

func (t *Table) primePi(x uint64) uint64 {
	numBlocks := int(t.header.NumBlocks)
	// First block whose first prime exceeds x.
	j := sort.Search(numBlocks, func(b int) bool {
		return t.blockFirst(uint64(b)) > x
	})
	if j == 0 {
		return 0
	}
	lo, hi := t.blockBounds(uint64(j - 1))
	k := sort.Search(int(hi-lo), func(i int) bool {
		return t.entry(lo+uint64(i)) > x
	})
	return lo + uint64(k)
}

// Contains reports whether x is in the table.
func (t *Table) Contains(x uint64) (bool, error) {
	if t.closed.Load() {
		return false, sieveerrors.ErrTableClosed
	}
	n := t.primePi(x)
	return n > 0 && t.entry(n-1) == x, nil
}

// Range yields the primes in [lo, hi] in ascending order. It yields nothing
// once the table is closed.
func (t *Table) Range(lo, hi uint64) iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		if t.closed.Load() || lo > hi {
			return
		}
		i := uint64(0)
		if lo > 0 {
			i = t.primePi(lo - 1)
		}
		for ; i < t.header.Count; i++ {
			p := t.entry(i)
			if p > hi || !yield(p) {
				return
			}
		}
	}
}

// GetTableStats returns statistics for a table file.
func GetTableStats(path string) (*TableStats, error) {
	t, err := Open(path)
	if err != nil {
		return nil, err
	}
	return t.Stats(), t.Close()
}

// Stats returns statistics for the table.
func (t *Table) Stats() *TableStats {
	totalSize := int64(len(t.data))

	bytesPerPrime := float64(0)
	if t.header.Count > 0 {
		bytesPerPrime = float64(totalSize) / float64(t.header.Count)
	}

	return &TableStats{
		Count:          t.header.Count,
		UpperBound:     t.header.UpperBound,
		NumBlocks:      t.header.NumBlocks,
		PrimesPerBlock: t.header.PrimesPerBlock,
		EntrySize:      t.entrySize,
		BytesPerPrime:  bytesPerPrime,
		TableSize:      totalSize,
	}
}

// Verify checks the integrity of the entire table:
// 1. HeaderHash (XXH3 over header and block index)
// 2. PrimeRegionHash (hash-of-hashes: H(H(b0) || H(b1) || ...))
// 3. every block starts with its block index entry, values strictly
// increase and stay within UpperBound
// 4. the stored Digest matches the decoded sequence
//
// The footer is decoded here rather than at Open time so that Open only
// touches the contiguous prefix.
func (t *Table) Verify() error {
	if t.closed.Load() {
		return sieveerrors.ErrTableClosed
	}

	ft, err := decodeFooter(t.data[t.layout.footerOffset:])
	if err != nil {
		return err
	}

	if xxh3.Hash(t.data[:t.layout.primeRegionOffset]) != ft.HeaderHash {
		return fmt.Errorf("header hash: %w", sieveerrors.ErrChecksumFailed)
	}

	regionHasher := xxhash.New()
	var hashBuf [8]byte
	for b := range uint64(t.header.NumBlocks) {
		lo, hi := t.blockBounds(b)
		block := t.region[lo*uint64(t.entrySize) : hi*uint64(t.entrySize)]
		binary.LittleEndian.PutUint64(hashBuf[:], xxhash.Sum64(block))
		if _, err := regionHasher.Write(hashBuf[:]); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
	}
	if regionHasher.Sum64() != ft.PrimeRegionHash {
		return fmt.Errorf("prime region hash: %w", sieveerrors.ErrChecksumFailed)
	}

	return t.verifySequence()
}

// verifySequence checks block starts, ordering and the stored digest.
func (t *Table) verifySequence() error {
	digest := xxhash.New()
	var (
		batch    = make([]uint64, 0, digestBatch)
		digestBf []byte
		prev     = uint64(1)
	)
	for b := range uint64(t.header.NumBlocks) {
		lo, hi := t.blockBounds(b)
		if t.entry(lo) != t.blockFirst(b) {
			return fmt.Errorf("block %d: first entry disagrees with block index: %w", b, sieveerrors.ErrCorruptedTable)
		}
		for i := lo; i < hi; i++ {
			p := t.entry(i)
			if p <= prev || p > t.header.UpperBound {
				return fmt.Errorf("entry %d: value %d out of order: %w", i, p, sieveerrors.ErrCorruptedTable)
			}
			prev = p
			batch = append(batch, p)
			if len(batch) == cap(batch) {
				digestBf = foldPrimes(digest, digestBf, batch)
				batch = batch[:0]
			}
		}
	}
	foldPrimes(digest, digestBf, batch)

	if digest.Sum64() != t.header.Digest {
		return fmt.Errorf("sequence digest: %w", sieveerrors.ErrChecksumFailed)
	}
	return nil
}
