package mem

import (
	"fmt"

	"github.com/joshuapare/execmem/internal/layout"
)

// Verify walks the free list of r and checks every structural invariant:
// chunks are aligned, inside the region, in strictly ascending order with
// a gap between neighbours, and their sizes add up to the free counter.
// Unlike the allocator itself it reports damage as an error wrapping
// ErrCorrupt instead of raising an alert.
//
// Verify reads the list without locking; callers serialize it with the
// operations on r.
func Verify(r *Region) error {
	var (
		total uint64
		count uint64
		limit = r.Size()/layout.ChunkTotal + 1
	)
	for c := r.first; c != Nil; c = r.chunkNext(c) {
		if count++; count > limit {
			return fmt.Errorf("%w: %s: free list does not terminate", ErrCorrupt, r)
		}
		if bad := r.checkChunk(c); bad != "" {
			return fmt.Errorf("%w: %s: %s", ErrCorrupt, r, bad)
		}
		total += r.chunkBytes(c)
	}
	if total != r.free {
		return fmt.Errorf("%w: %s: chunks hold %d bytes, counter says %d", ErrCorrupt, r, total, r.free)
	}
	if r.free > r.Size() {
		return fmt.Errorf("%w: %s: free counter exceeds capacity %d", ErrCorrupt, r, r.Size())
	}
	return nil
}
