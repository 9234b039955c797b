// Package mem implements the region and chunk layers of the memory manager.
//
// # Overview
//
// A Space owns a list of system regions, each a contiguous, page-aligned
// range of addresses backed by anonymous memory. Every region keeps a
// singly-linked list of free chunks inline in its own memory, sorted by
// address. The chunk allocator carves blocks out of that list and merges
// freed blocks back into it.
//
// # Components
//
//   - FindRegion: locate the system region containing an address
//   - Region.Allocate / Region.Deallocate: first-fit (or last-fit with
//     Reverse) allocation and merging deallocation within one region
//   - NewRegion / FreeRegion: build a self-describing region on top of a
//     span from the system allocator, and give it back
//   - AllocMem / FreeMem / Avail: plain allocation from the system regions
//
// Pools (package mem/pool) and the low-memory notifier (package
// mem/lowmem) are layered on top.
//
// # Usage Example
//
//	s, err := mem.NewSpace()
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	_, err = s.AddRegion(mem.RegionSpec{
//	    Name:       "fast",
//	    Size:       1 << 20,
//	    Attributes: mem.Public | mem.Fast,
//	})
//	if err != nil {
//	    return err
//	}
//
//	a, ok := s.AllocMem(256, mem.Public|mem.Clear)
//	if !ok {
//	    return errNoMemory
//	}
//	b, _ := s.Bytes(a, 256)
//	copy(b, payload)
//	s.FreeMem(a, 256)
//
// # Free Chunk Layout
//
// Chunks are 16-byte granular. A free chunk at address c stores:
//
//	c+0: address of the next free chunk (0 = end of list), little-endian
//	c+8: size of this chunk in bytes, little-endian
//
// Invariants checked on every walk: address and size are multiples of 16,
// the chunk lies inside its region, and c+size < next. Adjacent free
// chunks are always merged, so neighbours never touch.
//
// # Corruption
//
// A walk that finds a broken invariant raises a fatal alert through the
// Space's Alerter (AlertMemoryInsane while allocating, AlertMemCorrupt
// while freeing, AlertFreeTwice when a freed block overlaps free memory).
// The default PanicAlerter logs the condition and panics; the allocator
// never tries to repair the list. Running out of memory is not an alert:
// allocation functions simply report false.
//
// # Thread Safety
//
// Space methods are safe for concurrent use. A Region's Allocate and
// Deallocate are not: system regions are only touched under the Space's
// exclusive lock, and regions owned by a pool are serialized by the pool.
package mem
