// Package wall builds and checks boundary walls around pooled blocks.
//
// A walled allocation looks like this, with every offset relative to the
// start of the block returned by the chunk allocator:
//
//	0               magic
//	8               original size
//	HeaderSize      pre-wall (Size bytes of Fill)
//	BlockShift      payload (original size bytes)
//	BlockShift+n    post-wall (at least Size bytes of Fill, up to the
//	                chunk-rounded end of the block)
//
// Walls catch writes that run past either end of a block. They are checked
// when the block is freed; damage is reported by Check as an error.
package wall

import (
	"errors"
	"fmt"

	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
)

const (
	// HeaderSize is the wall header holding the magic and original size.
	HeaderSize = 16
	// Size is the minimum length of each wall.
	Size = 32
	// BlockShift is the offset of the payload from the block start.
	BlockShift = HeaderSize + Size
	// TotalSize is the overhead walls add to a request.
	TotalSize = BlockShift + Size

	// Fill is the byte pattern of both walls.
	Fill byte = 0xDB
	// PayloadFill pre-fills payloads allocated without Clear.
	PayloadFill byte = 0xAB

	// Magic marks a live walled block.
	Magic uint64 = 0x4C4C4157474E554D
)

var (
	ErrShort    = errors.New("wall: block too short")
	ErrHeader   = errors.New("wall: header damaged")
	ErrSize     = errors.New("wall: size mismatch")
	ErrPreWall  = errors.New("wall: pre-wall damaged")
	ErrPostWall = errors.New("wall: post-wall damaged")
)

// BlockSize returns the chunk-rounded size of a walled block carrying an
// n-byte payload.
func BlockSize(n uint64) uint64 {
	return layout.AlignChunk(n + TotalSize)
}

// Build lays the walls into b, the whole block, for an n-byte payload and
// returns the payload offset. The payload is zeroed when flags carries
// Clear and filled with PayloadFill otherwise.
func Build(b []byte, n uint64, flags mem.Flags) (int, error) {
	if uint64(len(b)) < n+TotalSize {
		return 0, fmt.Errorf("%w: %d bytes for a %d byte payload", ErrShort, len(b), n)
	}
	buf.PutU64At(b, 0, Magic)
	buf.PutU64At(b, 8, n)
	buf.Fill(b[HeaderSize:BlockShift], Fill)

	payload := b[BlockShift : BlockShift+n]
	if flags&mem.Clear != 0 {
		clear(payload)
	} else {
		buf.Fill(payload, PayloadFill)
	}
	buf.Fill(b[BlockShift+n:], Fill)
	return BlockShift, nil
}

// Check verifies the walls of b, the whole block, for an n-byte payload.
// On success the wall header is cleared so a stale copy cannot pass again.
func Check(b []byte, n uint64) error {
	if uint64(len(b)) < n+TotalSize {
		return fmt.Errorf("%w: %d bytes for a %d byte payload", ErrShort, len(b), n)
	}
	if magic, _ := buf.U64At(b, 0); magic != Magic {
		return fmt.Errorf("%w: magic 0x%016X", ErrHeader, magic)
	}
	if got, _ := buf.U64At(b, 8); got != n {
		return fmt.Errorf("%w: block holds %d bytes, freed with %d", ErrSize, got, n)
	}
	if i := firstOther(b[HeaderSize:BlockShift], Fill); i >= 0 {
		return fmt.Errorf("%w: byte %d before the payload", ErrPreWall, Size-i)
	}
	if i := firstOther(b[BlockShift+n:], Fill); i >= 0 {
		return fmt.Errorf("%w: byte %d after the payload", ErrPostWall, i)
	}
	clear(b[:HeaderSize])
	return nil
}

func firstOther(b []byte, v byte) int {
	for i, c := range b {
		if c != v {
			return i
		}
	}
	return -1
}
