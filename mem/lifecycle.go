package mem

import (
	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
)

// NewRegion obtains a span of size bytes from the system allocator and
// turns it into a self-describing region: the first HeaderSize bytes hold
// the header and the rest becomes a single free chunk. The region
// inherits priority and attributes from the system region the span came
// from. size is rounded up to the chunk granularity and must exceed
// HeaderSize.
func (s *Space) NewRegion(size uint64, flags Flags) (*Region, bool) {
	size = layout.AlignChunk(size)
	if size <= layout.HeaderSize {
		return nil, false
	}

	span, ok := s.sys.AllocSpan(size, flags)
	if !ok {
		return nil, false
	}

	parent := s.FindRegion(span)
	var hdr, body []byte
	if parent != nil {
		hdr, _ = parent.Bytes(span, layout.HeaderSize)
		body, _ = parent.Bytes(span.Add(layout.HeaderSize), size-layout.HeaderSize)
	}
	if hdr == nil || body == nil {
		s.log.Error("[MM] span does not belong to a system region",
			"span", span.String(), "size", size)
		s.sys.FreeSpan(span, size)
		return nil, false
	}

	r := newRegion("", span.Add(layout.HeaderSize), body, parent.attrs, parent.Pri(), s.alert)
	r.header = span
	r.hdr = hdr
	buf.PutU64At(hdr, layout.HeaderTypeOffset, uint64(NodeMemory))
	buf.PutU64At(hdr, layout.HeaderMagicOffset, layout.HeaderMagic)
	r.SetName(parent.Name())

	s.mu.Lock()
	s.headers[span] = r
	s.mu.Unlock()
	s.stats.regionsCreated.Add(1)

	s.log.Debug("[MM] new region",
		"header", span.String(),
		"size", size,
		"parent", parent.Name(),
		"attrs", r.attrs.String(),
	)
	return r, true
}

// FreeRegion gives a region built by NewRegion back to the system
// allocator. The region must no longer be linked in any list. Regions
// not built by NewRegion are ignored.
func (s *Space) FreeRegion(r *Region) {
	if r == nil || r.header == Nil {
		return
	}
	span := r.header
	size := uint64(r.upper-span) + 1

	s.mu.Lock()
	if s.headers[span] == r {
		delete(s.headers, span)
	}
	s.mu.Unlock()

	clear(r.hdr)
	r.node.Type = NodeUnknown
	r.hdr = nil
	r.header = Nil
	r.mem = nil
	r.first = Nil
	r.free = 0

	s.log.Debug("[MM] freeing region", "header", span.String(), "size", size)
	s.sys.FreeSpan(span, size)
	s.stats.regionsFreed.Add(1)
}

// ValidHeader reports whether the header bytes at a still carry the live
// region tag.
func (s *Space) ValidHeader(a Addr) bool {
	hdr, ok := s.Bytes(a, layout.HeaderSize)
	if !ok {
		return false
	}
	typ, _ := buf.U64At(hdr, layout.HeaderTypeOffset)
	magic, _ := buf.U64At(hdr, layout.HeaderMagicOffset)
	return NodeType(typ) == NodeMemory && magic == layout.HeaderMagic
}
