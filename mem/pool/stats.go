package pool

import "sync/atomic"

type poolStats struct {
	allocs         atomic.Uint64
	frees          atomic.Uint64
	failures       atomic.Uint64
	bytes          atomic.Uint64
	bytesFreed     atomic.Uint64
	puddlesCreated atomic.Uint64
	puddlesFreed   atomic.Uint64
	reorders       atomic.Uint64
}

// Stats is a snapshot of pool counters and puddle occupancy.
type Stats struct {
	Allocs         uint64 `json:"allocs"`
	Frees          uint64 `json:"frees"`
	Failures       uint64 `json:"failures"`
	BytesAllocated uint64 `json:"bytes_allocated"`
	BytesFreed     uint64 `json:"bytes_freed"`
	PuddlesCreated uint64 `json:"puddles_created"`
	PuddlesFreed   uint64 `json:"puddles_freed"`
	Reorders       uint64 `json:"reorders"`

	Puddles   int    `json:"puddles"`    // puddles currently linked
	Capacity  uint64 `json:"capacity"`   // usable bytes across puddles
	FreeBytes uint64 `json:"free_bytes"` // free bytes across puddles
}

// Stats returns the pool counters. Puddle occupancy is read under the
// pool lock when the pool is SemProtected.
func (p *Pool) Stats() Stats {
	st := Stats{
		Allocs:         p.stats.allocs.Load(),
		Frees:          p.stats.frees.Load(),
		Failures:       p.stats.failures.Load(),
		BytesAllocated: p.stats.bytes.Load(),
		BytesFreed:     p.stats.bytesFreed.Load(),
		PuddlesCreated: p.stats.puddlesCreated.Load(),
		PuddlesFreed:   p.stats.puddlesFreed.Load(),
		Reorders:       p.stats.reorders.Load(),
	}
	p.lock()
	defer p.unlock()
	for r := range p.puddles.Values() {
		st.Puddles++
		st.Capacity += r.Size()
		st.FreeBytes += r.FreeBytes()
	}
	return st
}
