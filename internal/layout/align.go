package layout

// AlignChunk returns n aligned up to the next ChunkTotal boundary.
//
// Example:
//
//	AlignChunk(1)  = 16
//	AlignChunk(16) = 16
//	AlignChunk(17) = 32
func AlignChunk(n uint64) uint64 {
	return (n + ChunkMask) &^ ChunkMask
}

// TruncChunk returns n aligned down to the previous ChunkTotal boundary.
func TruncChunk(n uint64) uint64 {
	return n &^ ChunkMask
}

// ChunkAligned reports whether n is a multiple of ChunkTotal.
func ChunkAligned(n uint64) bool {
	return n&ChunkMask == 0
}

// AlignPage returns n aligned up to the next multiple of pageSize.
// pageSize must be a power of two.
//
// Example:
//
//	AlignPage(1, 4096)    = 4096
//	AlignPage(4096, 4096) = 4096
//	AlignPage(4097, 4096) = 8192
func AlignPage(n, pageSize uint64) uint64 {
	mask := pageSize - 1
	return (n + mask) &^ mask
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
