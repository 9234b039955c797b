// Package buf contains bounds-checked little-endian word access used to read
// and write the metadata the allocator keeps inline in managed memory.
package buf

import "encoding/binary"

// U64LE reads a little-endian uint64 from b. Returns 0 when b is too short.
func U64LE(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

// PutU64LE writes v as a little-endian uint64 to b.
// Returns false (and writes nothing) when b is too short.
func PutU64LE(b []byte, v uint64) bool {
	if len(b) < 8 {
		return false
	}
	binary.LittleEndian.PutUint64(b, v)
	return true
}

// U64At reads the little-endian uint64 at b[off:off+8].
func U64At(b []byte, off int) (uint64, bool) {
	w, ok := Slice(b, off, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(w), true
}

// PutU64At writes v as a little-endian uint64 at b[off:off+8].
func PutU64At(b []byte, off int, v uint64) bool {
	w, ok := Slice(b, off, 8)
	if !ok {
		return false
	}
	binary.LittleEndian.PutUint64(w, v)
	return true
}

// Fill sets every byte of b to v.
func Fill(b []byte, v byte) {
	if v == 0 {
		clear(b)
		return
	}
	for i := range b {
		b[i] = v
	}
}

// AllEqual reports whether every byte of b equals v.
func AllEqual(b []byte, v byte) bool {
	for _, c := range b {
		if c != v {
			return false
		}
	}
	return true
}
