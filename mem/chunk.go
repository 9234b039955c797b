package mem

import (
	"fmt"

	"github.com/joshuapare/execmem/internal/layout"
)

// Allocate carves size bytes (rounded up to the chunk granularity) out of
// the region's free list.
//
// Without Reverse the first chunk that fits is used and the block is taken
// from its start. With Reverse the last chunk that fits is used and the
// block is taken from its end, so reverse allocations gather at the top of
// the region. Clear zeroes the block.
//
// A damaged free list raises AlertMemoryInsane. Allocate reports false
// when no chunk is large enough.
func (r *Region) Allocate(size uint64, flags Flags) (Addr, bool) {
	if size == 0 || size > r.free {
		return Nil, false
	}
	size = layout.AlignChunk(size)

	// fit is the predecessor of the chosen chunk (Nil = list head).
	var (
		prev  = Nil
		fit   = Nil
		found bool
	)
	for cur := r.first; cur != Nil; cur = r.chunkNext(cur) {
		if bad := r.checkChunk(cur); bad != "" {
			r.raise(AlertMemoryInsane, Nil, size,
				"chunk allocator error",
				fmt.Sprintf("attempt to allocate %d bytes from %s", size, r),
				bad,
			)
			return Nil, false
		}
		if r.chunkBytes(cur) >= size {
			fit, found = prev, true
			if flags&Reverse == 0 {
				break
			}
		}
		prev = cur
	}
	if !found {
		return Nil, false
	}

	c := r.nextOf(fit)
	cbytes := r.chunkBytes(c)
	cnext := r.chunkNext(c)

	var block Addr
	switch {
	case cbytes == size:
		r.setNextOf(fit, cnext)
		block = c
	case flags&Reverse != 0:
		// The remainder keeps its address; hand out the tail.
		block = c.Add(cbytes - size)
		r.setChunk(c, cnext, cbytes-size)
	default:
		rest := c.Add(size)
		r.setChunk(rest, cnext, cbytes-size)
		r.setNextOf(fit, rest)
		block = c
	}

	r.free -= size

	if flags&Clear != 0 {
		b, _ := r.Bytes(block, size)
		clear(b)
	}
	return block, true
}

// Deallocate returns [block, block+size) to the free list, merging it with
// the chunks directly before and after it.
//
// block may be unaligned (it can follow a sub-header); it is aligned down
// and size is grown to cover the same range. A damaged free list raises
// AlertMemCorrupt, a block overlapping free memory raises AlertFreeTwice,
// and a block outside the region raises AlertBadFreeAddr. It reports whether
// the block went back on the list.
func (r *Region) Deallocate(block Addr, size uint64) bool {
	if size == 0 {
		return true
	}
	if size > r.Size() {
		r.raise(AlertBadFreeAddr, block, size,
			"chunk allocator error",
			fmt.Sprintf("attempt to free %d bytes at %s, larger than %s", size, block, r),
		)
		return false
	}
	size += uint64(block) & layout.ChunkMask
	size = layout.AlignChunk(size)
	block = Addr(layout.TruncChunk(uint64(block)))

	if !r.Contains(block, size) {
		r.raise(AlertBadFreeAddr, block, size,
			"chunk allocator error",
			fmt.Sprintf("attempt to free %d bytes at %s outside %s", size, block, r),
		)
		return false
	}
	end := block.Add(size)

	if r.first == Nil {
		r.setChunk(block, Nil, size)
		r.first = block
		r.free += size
		return true
	}

	// Find the first chunk at or above block; prev trails it.
	prev, cur := Nil, r.first
	for cur != Nil {
		if bad := r.checkChunk(cur); bad != "" {
			r.raise(AlertMemCorrupt, block, size,
				"chunk allocator error",
				fmt.Sprintf("attempt to free %d bytes at %s from %s", size, block, r),
				bad,
			)
			return false
		}
		if cur >= block {
			if end > cur {
				r.raise(AlertFreeTwice, block, size,
					"chunk allocator error",
					fmt.Sprintf("attempt to free %d bytes at %s from %s", size, block, r),
					fmt.Sprintf("block overlaps with chunk %s (%d bytes)", cur, r.chunkBytes(cur)),
				)
				return false
			}
			break
		}
		prev = cur
		cur = r.chunkNext(cur)
	}

	start, total := block, size
	if prev != Nil {
		pend := prev.Add(r.chunkBytes(prev))
		if pend > block {
			r.raise(AlertFreeTwice, block, size,
				"chunk allocator error",
				fmt.Sprintf("attempt to free %d bytes at %s from %s", size, block, r),
				fmt.Sprintf("block overlaps with chunk %s (%d bytes)", prev, r.chunkBytes(prev)),
			)
			return false
		}
		if pend == block {
			start = prev
			total += r.chunkBytes(prev)
		} else {
			r.setNextOf(prev, block)
		}
	} else {
		r.first = block
	}

	succ := cur
	if cur != Nil && end == cur {
		total += r.chunkBytes(cur)
		succ = r.chunkNext(cur)
	}
	r.setChunk(start, succ, total)
	r.free += size
	return true
}

// checkChunk validates the chunk at c against its alignment, bounds and
// its successor. It returns a description of the damage, or "".
func (r *Region) checkChunk(c Addr) string {
	if !r.Contains(c, layout.ChunkTotal) {
		return fmt.Sprintf("chunk at %s lies outside the region", c)
	}
	n := r.chunkBytes(c)
	if (uint64(c)|n)&layout.ChunkMask != 0 || n == 0 {
		return fmt.Sprintf("misaligned chunk at %s (%d bytes)", c, n)
	}
	if !r.Contains(c, n) {
		return fmt.Sprintf("chunk at %s (%d bytes) runs past the region", c, n)
	}
	next := r.chunkNext(c)
	if next != Nil && c.Add(n) >= next {
		nn := uint64(0)
		if r.Contains(next, layout.ChunkTotal) {
			nn = r.chunkBytes(next)
		}
		return fmt.Sprintf("overlapping chunks %s (%d bytes) and %s (%d bytes)", c, n, next, nn)
	}
	return ""
}
