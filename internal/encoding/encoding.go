// Package encoding provides serialization utilities for prime table entries.
//
// WriteEntry uses unsafe native-endian writes and is only correct on
// little-endian architectures (amd64, arm64). ReadEntry is the portable,
// bounds-checked counterpart.
package encoding

import (
	"encoding/binary"
	"unsafe"
)

// WriteEntry stores v as a little-endian entry of entrySize bytes at slot pos
// in the buffer starting at basePtr.
//
// Only supports entrySize 4 and 8; panics for other sizes. Callers must have
// checked that v fits in entrySize bytes; excess high bits are truncated.
// When inlined at call sites that pass a constant entrySize, the compiler
// eliminates the unused switch branch.
func WriteEntry(basePtr unsafe.Pointer, pos, entrySize int, v uint64) {
	switch entrySize {
	case 4:
		*(*uint32)(unsafe.Add(basePtr, pos*4)) = uint32(v)
	case 8:
		*(*uint64)(unsafe.Add(basePtr, pos*8)) = v
	default:
		panic("encoding: WriteEntry: unsupported entrySize")
	}
}

// ReadEntry reads the little-endian entry at slot pos from buf.
func ReadEntry(buf []byte, pos, entrySize int) uint64 {
	off := pos * entrySize
	switch entrySize {
	case 4:
		return uint64(binary.LittleEndian.Uint32(buf[off:]))
	case 8:
		return binary.LittleEndian.Uint64(buf[off:])
	default:
		var v uint64
		for i := range entrySize {
			v |= uint64(buf[off+i]) << (i * 8)
		}
		return v
	}
}

// EntrySizeFor returns the smallest supported entry size that holds max.
func EntrySizeFor(max uint64) int {
	if max <= 0xFFFFFFFF {
		return 4
	}
	return 8
}

// PutUint64s appends the little-endian encoding of vals to dst.
// Used to feed sequences into streaming hashers in fixed-size batches.
func PutUint64s(dst []byte, vals []uint64) []byte {
	for _, v := range vals {
		dst = binary.LittleEndian.AppendUint64(dst, v)
	}
	return dst
}
