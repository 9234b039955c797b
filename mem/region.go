package mem

import (
	"fmt"
	"iter"

	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
)

// Region describes one contiguous span of memory [Lower, Upper] and the
// free chunks inside it.
//
// Free chunks live inline in the region's memory: a chunk at address c
// stores the address of the next free chunk at c+0 and its size at c+8.
// The list is kept in ascending address order with no two chunks touching.
// Allocated blocks carry no header; the caller remembers their size.
type Region struct {
	node Node[*Region]

	lower, upper Addr
	free         uint64
	attrs        Flags
	first        Addr

	// mem is the view of [lower, upper].
	mem []byte

	// header is the address of the self-describing header that precedes
	// lower for regions built by NewRegion, and Nil for system regions.
	header Addr
	hdr    []byte

	owner any
	alert Alerter
}

// newRegion wraps mem as a region at lower with one free chunk spanning it.
func newRegion(name string, lower Addr, mem []byte, attrs Flags, pri int8, al Alerter) *Region {
	r := &Region{
		lower: lower,
		upper: lower.Add(uint64(len(mem)) - 1),
		attrs: attrs,
		mem:   mem,
		alert: al,
	}
	r.node.Type = NodeMemory
	r.node.Pri = pri
	r.node.Name = name
	r.node.Value = r
	r.first = lower
	r.setChunk(lower, Nil, uint64(len(mem)))
	r.free = uint64(len(mem))
	return r
}

// NewArena builds a standalone region over mem, which must be a non-empty
// multiple of the chunk granularity. lower is the address of mem[0] and
// must be chunk aligned and non-zero. Arena regions do not belong to a
// Space; fatal alerts go to al, or to PanicAlerter when al is nil.
func NewArena(name string, lower Addr, mem []byte, attrs Flags, al Alerter) (*Region, error) {
	if len(mem) == 0 || !layout.ChunkAligned(uint64(len(mem))) {
		return nil, fmt.Errorf("%w: arena of %d bytes", ErrBadSize, len(mem))
	}
	if lower == Nil || !layout.ChunkAligned(uint64(lower)) {
		return nil, fmt.Errorf("%w: arena base %s", ErrBadSize, lower)
	}
	return newRegion(name, lower, mem, attrs, 0, al), nil
}

// Lower returns the first address of the region.
func (r *Region) Lower() Addr { return r.lower }

// Upper returns the last address of the region (inclusive).
func (r *Region) Upper() Addr { return r.upper }

// Size returns the capacity of the region in bytes.
func (r *Region) Size() uint64 { return uint64(r.upper-r.lower) + 1 }

// FreeBytes returns the free-byte counter.
func (r *Region) FreeBytes() uint64 { return r.free }

// Attributes returns the physical capability flags of the region.
func (r *Region) Attributes() Flags { return r.attrs }

// Pri returns the list priority of the region.
func (r *Region) Pri() int8 { return r.node.Pri }

// Name returns the region name.
func (r *Region) Name() string { return r.node.Name }

// Type returns the node type; NodeMemory while the region is live.
func (r *Region) Type() NodeType { return r.node.Type }

// Node returns the list node of the region, for owners that keep regions
// in their own lists.
func (r *Region) Node() *Node[*Region] { return &r.node }

// Header returns the address of the region header, or Nil for regions
// that were not built by NewRegion.
func (r *Region) Header() Addr { return r.header }

// Owner returns the back-reference set with SetOwner.
func (r *Region) Owner() any { return r.owner }

// SetOwner records the object (typically a pool) that owns the region.
func (r *Region) SetOwner(o any) { r.owner = o }

// Contains reports whether [a, a+n) lies inside the region.
func (r *Region) Contains(a Addr, n uint64) bool {
	if a < r.lower || a > r.upper {
		return false
	}
	return n <= uint64(r.upper-a)+1
}

// Bytes returns the memory of [a, a+n), or false when the range is not
// inside the region.
func (r *Region) Bytes(a Addr, n uint64) ([]byte, bool) {
	if !r.Contains(a, n) {
		return nil, false
	}
	off := uint64(a - r.lower)
	return r.mem[off : off+n : off+n], true
}

// Chunks yields (address, size) for every free chunk in list order.
// Iteration stops early at a chunk that cannot be read.
func (r *Region) Chunks() iter.Seq2[Addr, uint64] {
	return func(yield func(Addr, uint64) bool) {
		limit := r.Size()/layout.ChunkTotal + 1
		for c := r.first; c != Nil && limit > 0; limit-- {
			if !r.Contains(c, layout.ChunkTotal) {
				return
			}
			if !yield(c, r.chunkBytes(c)) {
				return
			}
			c = r.chunkNext(c)
		}
	}
}

// Largest returns the size of the biggest free chunk.
func (r *Region) Largest() uint64 {
	var largest uint64
	for _, n := range r.Chunks() {
		largest = max(largest, n)
	}
	return largest
}

func (r *Region) String() string {
	name := r.node.Name
	if name == "" {
		name = "region"
	}
	return fmt.Sprintf("%s[%s-%s free=%d]", name, r.lower, r.upper, r.free)
}

func (r *Region) chunkOff(c Addr) int {
	return int(uint64(c - r.lower))
}

func (r *Region) chunkNext(c Addr) Addr {
	v, _ := buf.U64At(r.mem, r.chunkOff(c)+layout.ChunkNextOffset)
	return Addr(v)
}

func (r *Region) chunkBytes(c Addr) uint64 {
	v, _ := buf.U64At(r.mem, r.chunkOff(c)+layout.ChunkBytesOffset)
	return v
}

func (r *Region) setChunk(c, next Addr, n uint64) {
	off := r.chunkOff(c)
	buf.PutU64At(r.mem, off+layout.ChunkNextOffset, uint64(next))
	buf.PutU64At(r.mem, off+layout.ChunkBytesOffset, n)
}

// nextOf returns the link stored at prev, where Nil stands for the list head.
func (r *Region) nextOf(prev Addr) Addr {
	if prev == Nil {
		return r.first
	}
	return r.chunkNext(prev)
}

// setNextOf updates the link stored at prev, where Nil stands for the list head.
func (r *Region) setNextOf(prev, next Addr) {
	if prev == Nil {
		r.first = next
		return
	}
	buf.PutU64At(r.mem, r.chunkOff(prev)+layout.ChunkNextOffset, uint64(next))
}

func (r *Region) raise(code AlertCode, a Addr, n uint64, detail ...string) {
	al := r.alert
	if al == nil {
		al = PanicAlerter
	}
	al.Alert(&Alert{Code: code | DeadEnd, Region: r, Addr: a, Size: n, Detail: detail})
}
