package segsieve

import (
	"encoding/binary"

	sieveerrors "github.com/tamirms/segsieve/errors"
)

const (
	// magic number for segsieve table files
	// "SGSV" in little-endian
	magic = uint32(0x56534753)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32

	// blockIndexEntrySize is the size of each block index entry: the first
	// prime of the block as uint64_le.
	blockIndexEntrySize = 8
)

// header is the 64-byte table header.
//
// Layout:
//
//	Offset  Size  Field           Type
//	0       4     Magic           0x56534753 ("SGSV")
//	4       2     Version         0x0001
//	6       1     EntrySize       uint8 (bytes per prime: 4 or 8)
//	7       1     Reserved        uint8 (zero)
//	8       8     UpperBound      uint64_le (inclusive sieve bound)
//	16      8     Count           uint64_le (number of primes)
//	24      4     PrimesPerBlock  uint32_le
//	28      4     NumBlocks       uint32_le
//	32      8     Digest          uint64_le (SequenceDigest of all primes)
//	40      24    Reserved        [24]byte (zero)
//
// The header is followed by the block index ((NumBlocks+1) entries, the last
// being the sentinel UpperBound+1), the prime region (Count × EntrySize) and
// the footer.
type header struct {
	Magic          uint32
	Version        uint16
	EntrySize      uint8
	UpperBound     uint64
	Count          uint64
	PrimesPerBlock uint32
	NumBlocks      uint32
	Digest         uint64
	Reserved       [24]byte
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.EntrySize
	buf[7] = 0
	binary.LittleEndian.PutUint64(buf[8:16], h.UpperBound)
	binary.LittleEndian.PutUint64(buf[16:24], h.Count)
	binary.LittleEndian.PutUint32(buf[24:28], h.PrimesPerBlock)
	binary.LittleEndian.PutUint32(buf[28:32], h.NumBlocks)
	binary.LittleEndian.PutUint64(buf[32:40], h.Digest)
	copy(buf[40:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, sieveerrors.ErrTruncatedFile
	}

	h := &header{
		Magic:          binary.LittleEndian.Uint32(buf[0:4]),
		Version:        binary.LittleEndian.Uint16(buf[4:6]),
		EntrySize:      buf[6],
		UpperBound:     binary.LittleEndian.Uint64(buf[8:16]),
		Count:          binary.LittleEndian.Uint64(buf[16:24]),
		PrimesPerBlock: binary.LittleEndian.Uint32(buf[24:28]),
		NumBlocks:      binary.LittleEndian.Uint32(buf[28:32]),
		Digest:         binary.LittleEndian.Uint64(buf[32:40]),
	}
	copy(h.Reserved[:], buf[40:64])

	if h.Magic != magic {
		return nil, sieveerrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, sieveerrors.ErrInvalidVersion
	}
	if h.EntrySize != 4 && h.EntrySize != 8 {
		return nil, sieveerrors.ErrCorruptedTable
	}
	if h.PrimesPerBlock == 0 {
		return nil, sieveerrors.ErrCorruptedTable
	}
	if uint64(h.NumBlocks) != numBlocksFor(h.Count, h.PrimesPerBlock) {
		return nil, sieveerrors.ErrCorruptedTable
	}

	return h, nil
}

// entrySize returns EntrySize as int for arithmetic convenience.
func (h *header) entrySize() int {
	return int(h.EntrySize)
}

// numBlocksFor returns ceil(count / perBlock).
func numBlocksFor(count uint64, perBlock uint32) uint64 {
	return (count + uint64(perBlock) - 1) / uint64(perBlock)
}

// footer is the 32-byte table footer.
//
// Layout:
//
//	Offset  Size  Field            Type
//	0       8     PrimeRegionHash  uint64_le (xxHash64 hash-of-hashes over blocks)
//	8       8     HeaderHash       uint64_le (XXH3-64 of header + block index)
//	16      16    Reserved         [16]byte (zero)
type footer struct {
	PrimeRegionHash uint64
	HeaderHash      uint64
	Reserved        [16]byte
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.PrimeRegionHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.HeaderHash)
	copy(buf[16:32], f.Reserved[:])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, sieveerrors.ErrTruncatedFile
	}

	f := &footer{
		PrimeRegionHash: binary.LittleEndian.Uint64(buf[0:8]),
		HeaderHash:      binary.LittleEndian.Uint64(buf[8:16]),
	}
	copy(f.Reserved[:], buf[16:32])

	return f, nil
}

// tableLayout holds the absolute offsets of every table region.
type tableLayout struct {
	blockIndexOffset  uint64
	primeRegionOffset uint64
	footerOffset      uint64
	size              uint64
}

// layoutFor computes region offsets for h. The caller must have bounded
// h.Count so the products cannot overflow.
func layoutFor(h *header) tableLayout {
	blockIndexOffset := uint64(headerSize)
	primeRegionOffset := blockIndexOffset + (uint64(h.NumBlocks)+1)*blockIndexEntrySize
	footerOffset := primeRegionOffset + h.Count*uint64(h.EntrySize)
	return tableLayout{
		blockIndexOffset:  blockIndexOffset,
		primeRegionOffset: primeRegionOffset,
		footerOffset:      footerOffset,
		size:              footerOffset + footerSize,
	}
}
