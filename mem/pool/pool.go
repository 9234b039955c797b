// Package pool implements pooled sub-allocation on top of self-describing
// regions ("puddles").
//
// A pool keeps a priority-ordered list of puddles. Allocations scan the
// list for a puddle whose attributes satisfy the request, creating a new
// puddle when none has room. Every pooled block is preceded by the address
// of its puddle's header, so Free can find the owner without a lookup
// table. A puddle that becomes completely free is given back to the
// system allocator.
package pool

import (
	"fmt"
	"sync"

	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
)

// Options configures a pool.
type Options struct {
	Name string

	// Requirements are ORed into the flags of every allocation. Physical
	// bits restrict the puddles used; SemProtected makes the pool take its
	// lock around every operation.
	Requirements mem.Flags

	// PuddleSize is the size of regular puddles, rounded up to the chunk
	// granularity. Requests too large for a regular puddle get a puddle of
	// their own, rounded up to the page size.
	PuddleSize uint64

	// Threshold must not exceed PuddleSize.
	Threshold uint64
}

// Pool is a set of puddles owned by one client.
type Pool struct {
	space        *mem.Space
	name         string
	requirements mem.Flags
	puddleSize   uint64
	threshold    uint64

	sem     sync.Mutex
	puddles mem.List[*mem.Region]

	stats poolStats
}

// New creates an empty pool drawing puddles from s.
func New(s *mem.Space, opts Options) (*Pool, error) {
	if opts.Threshold > opts.PuddleSize {
		return nil, fmt.Errorf("%w: threshold %d, puddle size %d", ErrBadThreshold, opts.Threshold, opts.PuddleSize)
	}
	size := layout.AlignChunk(opts.PuddleSize)
	if size <= layout.HeaderSize {
		return nil, fmt.Errorf("%w: %d", ErrBadPuddleSize, opts.PuddleSize)
	}
	p := &Pool{
		space:        s,
		name:         opts.Name,
		requirements: opts.Requirements,
		puddleSize:   size,
		threshold:    opts.Threshold,
	}
	s.Logger().Debug("[MM] created pool",
		"name", p.name,
		"puddle_size", p.puddleSize,
		"requirements", p.requirements.String(),
	)
	return p, nil
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Requirements returns the flags applied to every allocation.
func (p *Pool) Requirements() mem.Flags { return p.requirements }

// PuddleSize returns the size of regular puddles.
func (p *Pool) PuddleSize() uint64 { return p.puddleSize }

// Space returns the Space the pool draws from.
func (p *Pool) Space() *mem.Space { return p.space }

func (p *Pool) lock() {
	if p.requirements&mem.SemProtected != 0 {
		p.sem.Lock()
	}
}

func (p *Pool) unlock() {
	if p.requirements&mem.SemProtected != 0 {
		p.sem.Unlock()
	}
}

// Puddles returns a snapshot of the puddle list in scan order.
func (p *Pool) Puddles() []*mem.Region {
	p.lock()
	defer p.unlock()
	out := make([]*mem.Region, 0, p.puddles.Len())
	for r := range p.puddles.Values() {
		out = append(out, r)
	}
	return out
}

// Delete gives every puddle back to the system allocator. Blocks still
// allocated from the pool become invalid. The pool must not be used
// afterwards.
func (p *Pool) Delete() {
	p.lock()
	defer p.unlock()
	for n := range p.puddles.All() {
		p.puddles.Remove(n)
		p.space.FreeRegion(n.Value)
		p.stats.puddlesFreed.Add(1)
	}
	p.space.Logger().Debug("[MM] deleted pool", "name", p.name)
}

func (p *Pool) String() string {
	return fmt.Sprintf("pool %q (%s, puddle %d)", p.name, p.requirements, p.puddleSize)
}

// Owner reads the puddle header address stored before a pooled block.
func Owner(s *mem.Space, block mem.Addr) (mem.Addr, bool) {
	b, ok := s.Bytes(block.Sub(layout.PointerSize), layout.PointerSize)
	if !ok {
		return mem.Nil, false
	}
	return mem.Addr(buf.U64LE(b)), true
}
