package pool

import (
	"fmt"

	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
	"github.com/joshuapare/execmem/mem/wall"
)

// maxRequest bounds request sizes so prefix, walls and page rounding
// cannot overflow.
const maxRequest = 1 << 62

// Alloc returns a block of size bytes from the pool, or false when neither
// an existing puddle nor a new one can hold it. flags are combined with
// the pool's requirements.
//
// Puddles are scanned in list order, skipping those whose attributes lack
// the requested physical bits. When the list is exhausted a new puddle is
// created: PuddleSize bytes, or the page-rounded request plus header when
// the request does not fit a regular puddle.
func (p *Pool) Alloc(size uint64, flags mem.Flags) (mem.Addr, bool) {
	if size == 0 || size > maxRequest {
		p.stats.failures.Add(1)
		return mem.Nil, false
	}
	flags |= p.requirements

	size += layout.PointerSize
	orig := size
	walls := p.space.Walls()
	if walls {
		size = wall.BlockSize(orig)
	}

	r, block, ok := p.allocLocked(size, flags)
	if !ok {
		p.stats.failures.Add(1)
		p.space.Logger().Debug("[MM] pool allocation failed",
			"pool", p.name, "size", orig-layout.PointerSize, "flags", flags.String())
		return mem.Nil, false
	}

	b, _ := r.Bytes(block, layout.AlignChunk(size))
	if walls {
		off, err := wall.Build(b, orig, flags)
		if err != nil {
			// BlockSize always leaves room for the walls.
			panic(err)
		}
		block = block.Add(uint64(off))
		b = b[off:]
	}
	buf.PutU64LE(b, uint64(r.Header()))

	p.stats.allocs.Add(1)
	p.stats.bytes.Add(orig - layout.PointerSize)
	return block.Add(layout.PointerSize), true
}

// allocLocked runs the puddle scan under the pool lock and returns the
// puddle and the raw block.
func (p *Pool) allocLocked(size uint64, flags mem.Flags) (*mem.Region, mem.Addr, bool) {
	p.lock()
	defer p.unlock()

	for n := p.puddles.Front(); n != nil; n = n.Next() {
		r := n.Value
		if !r.Attributes().Satisfies(flags) {
			continue
		}
		if block, ok := r.Allocate(size, flags); ok {
			p.promote(n)
			return r, block, true
		}
	}

	r := p.newPuddle(size, flags)
	if r == nil {
		return nil, mem.Nil, false
	}
	block, ok := r.Allocate(size, flags)
	if !ok {
		p.puddles.Remove(r.Node())
		p.space.FreeRegion(r)
		p.stats.puddlesFreed.Add(1)
		return nil, mem.Nil, false
	}
	p.promote(r.Node())
	return r, block, true
}

// promote re-sorts a puddle that still has room: it is unlinked and
// enqueued again, landing after every puddle of equal or higher priority.
func (p *Pool) promote(n *mem.Node[*mem.Region]) {
	if n == p.puddles.Front() || n.Value.FreeBytes() <= layout.PuddleSlack {
		return
	}
	p.puddles.Remove(n)
	p.puddles.Enqueue(n)
	p.stats.reorders.Add(1)
}

// newPuddle creates a puddle large enough for a size-byte block and links
// it into the puddle list.
func (p *Pool) newPuddle(size uint64, flags mem.Flags) *mem.Region {
	puddleSize := p.puddleSize
	if size > puddleSize-layout.HeaderSize {
		puddleSize = layout.AlignPage(size+layout.HeaderSize, p.space.PageSize())
	}

	r, ok := p.space.NewRegion(puddleSize, flags)
	if !ok {
		return nil
	}
	r.SetOwner(p)
	r.SetName(p.name)
	p.puddles.Enqueue(r.Node())
	p.stats.puddlesCreated.Add(1)

	p.space.Logger().Debug("[MM] new puddle",
		"pool", p.name,
		"header", r.Header().String(),
		"size", puddleSize,
		"attrs", r.Attributes().String(),
	)
	return r
}

// Free returns a block obtained from p.Alloc. Freeing a block that belongs
// to another pool raises AlertBadFreeAddr.
func (p *Pool) Free(block mem.Addr, size uint64) {
	if block == mem.Nil || size == 0 {
		return
	}
	if owner := p.ownerOf(block); owner != p {
		p.space.Raise(&mem.Alert{
			Code: mem.AlertBadFreeAddr,
			Addr: block,
			Size: size,
			Detail: []string{
				"pool manager error",
				fmt.Sprintf("attempt to free %d bytes at %s", size, block),
				fmt.Sprintf("the block does not belong to %s", p),
			},
		})
		return
	}
	Free(p.space, block, size)
}

func (p *Pool) ownerOf(block mem.Addr) *Pool {
	h, ok := Owner(p.space, block)
	if !ok {
		return nil
	}
	r, ok := p.space.Header(h)
	if !ok {
		return nil
	}
	owner, _ := r.Owner().(*Pool)
	return owner
}

// Free returns a pooled block of size bytes to the puddle recorded in its
// prefix. The pool is found through the puddle, so no pool argument is
// needed.
//
// With walls enabled the walls are checked first; damage raises
// AlertMemCorrupt. A prefix that does not name a live puddle containing
// the block raises AlertBadFreeAddr. A puddle left completely free is
// removed from its pool and released.
func Free(s *mem.Space, block mem.Addr, size uint64) {
	if block == mem.Nil || size == 0 {
		return
	}
	start := block.Sub(layout.PointerSize)
	freeSize := size + layout.PointerSize

	h, ok := Owner(s, block)
	if !ok {
		badFree(s, block, size, "the block is outside every region")
		return
	}

	if s.Walls() {
		orig := freeSize
		start = start.Sub(wall.BlockShift)
		freeSize = wall.BlockSize(orig)
		b, ok := s.Bytes(start, freeSize)
		if !ok {
			badFree(s, block, size, "the walled block is outside every region")
			return
		}
		if err := wall.Check(b, orig); err != nil {
			s.Raise(&mem.Alert{
				Code: mem.AlertMemCorrupt,
				Addr: block,
				Size: size,
				Detail: []string{
					"boundary wall error",
					fmt.Sprintf("attempt to free %d bytes at %s", size, block),
					err.Error(),
				},
			})
			return
		}
	}

	r, ok := s.Header(h)
	if !ok || !s.ValidHeader(h) || r.Type() != mem.NodeMemory || !r.Contains(start, freeSize) {
		badFree(s, block, size, "the block does not belong to a pool")
		return
	}
	p, ok := r.Owner().(*Pool)
	if !ok {
		badFree(s, block, size, "the block does not belong to a pool")
		return
	}
	p.release(r, start, freeSize, size)
}

func badFree(s *mem.Space, block mem.Addr, size uint64, why string) {
	s.Raise(&mem.Alert{
		Code: mem.AlertBadFreeAddr,
		Addr: block,
		Size: size,
		Detail: []string{
			"pool manager error",
			fmt.Sprintf("attempt to free %d bytes at %s", size, block),
			why,
		},
	})
}

// release gives [start, start+n) back to puddle r and drops the puddle
// once it is empty. size is the caller's block size.
func (p *Pool) release(r *mem.Region, start mem.Addr, n, size uint64) {
	p.lock()
	defer p.unlock()

	if !r.Deallocate(start, n) {
		return
	}
	p.stats.frees.Add(1)
	p.stats.bytesFreed.Add(size)

	if r.FreeBytes() == r.Size() {
		p.space.Logger().Debug("[MM] puddle is empty, giving it back",
			"pool", p.name, "header", r.Header().String())
		p.puddles.Remove(r.Node())
		p.space.FreeRegion(r)
		p.stats.puddlesFreed.Add(1)
	}
}
