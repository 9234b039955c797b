package mem

import "sync/atomic"

type spaceStats struct {
	allocCalls     atomic.Uint64
	allocFailures  atomic.Uint64
	freeCalls      atomic.Uint64
	freeRejected   atomic.Uint64
	bytesAllocated atomic.Uint64
	bytesFreed     atomic.Uint64
	regionsCreated atomic.Uint64
	regionsFreed   atomic.Uint64
}

// Stats holds counters for plain allocations and region lifecycle.
type Stats struct {
	AllocCalls     uint64 `json:"alloc_calls"`     // AllocMem calls
	AllocFailures  uint64 `json:"alloc_failures"`  // AllocMem calls that returned no memory
	FreeCalls      uint64 `json:"free_calls"`      // FreeMem calls that returned memory
	FreeRejected   uint64 `json:"free_rejected"`   // FreeMem calls refused by the system allocator
	BytesAllocated uint64 `json:"bytes_allocated"` // bytes requested by successful AllocMem calls
	BytesFreed     uint64 `json:"bytes_freed"`     // bytes passed to FreeMem
	RegionsCreated uint64 `json:"regions_created"` // NewRegion successes
	RegionsFreed   uint64 `json:"regions_freed"`   // FreeRegion calls
}

// Stats returns a snapshot of the counters.
func (s *Space) Stats() Stats {
	return Stats{
		AllocCalls:     s.stats.allocCalls.Load(),
		AllocFailures:  s.stats.allocFailures.Load(),
		FreeCalls:      s.stats.freeCalls.Load(),
		FreeRejected:   s.stats.freeRejected.Load(),
		BytesAllocated: s.stats.bytesAllocated.Load(),
		BytesFreed:     s.stats.bytesFreed.Load(),
		RegionsCreated: s.stats.regionsCreated.Load(),
		RegionsFreed:   s.stats.regionsFreed.Load(),
	}
}

// RegionInfo is a point-in-time view of a system region.
type RegionInfo struct {
	Name       string `json:"name"`
	Lower      Addr   `json:"lower"`
	Upper      Addr   `json:"upper"`
	Attributes Flags  `json:"attributes"`
	Priority   int8   `json:"priority"`
	Size       uint64 `json:"size"`
	Free       uint64 `json:"free"`
	Largest    uint64 `json:"largest"`
}

// Snapshot describes every system region, in priority order, under the
// shared lock.
func (s *Space) Snapshot() []RegionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RegionInfo, 0, s.regions.Len())
	for r := range s.regions.Values() {
		out = append(out, RegionInfo{
			Name:       r.Name(),
			Lower:      r.lower,
			Upper:      r.upper,
			Attributes: r.attrs,
			Priority:   r.Pri(),
			Size:       r.Size(),
			Free:       r.free,
			Largest:    r.Largest(),
		})
	}
	return out
}
