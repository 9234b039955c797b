// Package layout holds the size and alignment constants shared by the
// memory manager packages.
package layout

const (
	// ChunkTotal is the granularity of the chunk allocator. Every free chunk
	// address and size is a multiple of it. A free chunk stores its link and
	// its size inline, so it must be able to hold two 8-byte words.
	ChunkTotal = 16

	// ChunkMask is the bitmask used for aligning to ChunkTotal (ChunkTotal - 1).
	ChunkMask = ChunkTotal - 1

	// ChunkNextOffset is the offset of the next-chunk address inside a free chunk.
	ChunkNextOffset = 0

	// ChunkBytesOffset is the offset of the chunk size inside a free chunk.
	ChunkBytesOffset = 8

	// HeaderSize is the space reserved at the start of every self-describing
	// region for its header. It is a multiple of ChunkTotal.
	HeaderSize = 64

	// HeaderTypeOffset is the offset of the node type tag inside a region header.
	HeaderTypeOffset = 0

	// HeaderMagicOffset is the offset of the header magic inside a region header.
	HeaderMagicOffset = 8

	// HeaderMagic marks a live region header ("MEMHDR\x00\x01").
	HeaderMagic = 0x01004452484D454D

	// HeaderNameOffset is the offset of the region name inside a region
	// header. The name is ISO-8859-1, NUL padded, at most HeaderNameSize-1
	// bytes long.
	HeaderNameOffset = 16
	HeaderNameSize   = HeaderSize - HeaderNameOffset

	// PointerSize is the size of the owner prefix stored before pooled blocks.
	PointerSize = 8

	// DefaultPageSize is the page size used when a Space is not configured
	// with one. Whole system regions and oversize puddles are page-rounded.
	DefaultPageSize = 0x1000

	// BaseAddress is where the first system region of a Space is placed.
	// Address zero is reserved as the nil address.
	BaseAddress = 0x10000

	// PuddleSlack is the free space a puddle must keep after an allocation
	// to be re-sorted into its pool's puddle list.
	PuddleSlack = 32
)
