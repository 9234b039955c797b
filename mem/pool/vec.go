package pool

import (
	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
)

// AllocVec allocates a block that remembers its own size, so it can be
// freed with FreeVec alone.
func (p *Pool) AllocVec(size uint64, flags mem.Flags) (mem.Addr, bool) {
	if size == 0 {
		return mem.Nil, false
	}
	a, ok := p.Alloc(size+layout.PointerSize, flags)
	if !ok {
		return mem.Nil, false
	}
	b, _ := p.space.Bytes(a, layout.PointerSize)
	buf.PutU64LE(b, size+layout.PointerSize)
	return a.Add(layout.PointerSize), true
}

// FreeVec frees a block obtained from AllocVec. Nil is ignored.
func (p *Pool) FreeVec(block mem.Addr) {
	if block == mem.Nil {
		return
	}
	a := block.Sub(layout.PointerSize)
	b, ok := p.space.Bytes(a, layout.PointerSize)
	if !ok {
		badFree(p.space, block, 0, "the vector is outside every region")
		return
	}
	p.Free(a, buf.U64LE(b))
}

// VecSize returns the usable size of a block obtained from AllocVec.
func (p *Pool) VecSize(block mem.Addr) uint64 {
	b, ok := p.space.Bytes(block.Sub(layout.PointerSize), layout.PointerSize)
	if !ok {
		return 0
	}
	return buf.U64LE(b) - layout.PointerSize
}
