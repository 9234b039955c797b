package mem

import "fmt"

// SystemAllocator hands out and takes back coarse spans of memory.
// Region lifecycle builds self-describing regions on top of it. It must
// not depend on the low-memory notifier or pools, so it can run while
// those are unavailable.
type SystemAllocator interface {
	AllocSpan(size uint64, flags Flags) (Addr, bool)
	FreeSpan(a Addr, size uint64) bool
}

// spaceAllocator runs the chunk allocator over the system region list.
type spaceAllocator struct {
	s *Space
}

// AllocSpan takes size bytes from the first system region, in priority
// order, whose attributes satisfy the physical bits of flags.
func (sa spaceAllocator) AllocSpan(size uint64, flags Flags) (Addr, bool) {
	s := sa.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for r := range s.regions.Values() {
		if !r.attrs.Satisfies(flags) {
			continue
		}
		if a, ok := r.Allocate(size, flags); ok {
			return a, true
		}
	}
	return Nil, false
}

// FreeSpan returns a span to the system region that contains it and
// reports whether it was taken back.
func (sa spaceAllocator) FreeSpan(a Addr, size uint64) bool {
	s := sa.s
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(a)
	if r == nil {
		s.alert.Alert(&Alert{
			Code: AlertBadFreeAddr | DeadEnd,
			Addr: a,
			Size: size,
			Detail: []string{
				"system allocator error",
				fmt.Sprintf("attempt to free %d bytes at %s outside every system region", size, a),
			},
		})
		return false
	}
	return r.Deallocate(a, size)
}

// System returns the system allocator of the Space.
func (s *Space) System() SystemAllocator { return s.sys }

// LowMemory is consulted when a plain allocation fails. Retry calls alloc
// again each time a low-memory handler reports it released memory, and
// returns the first success.
type LowMemory interface {
	Retry(size uint64, flags Flags, alloc func() (Addr, bool)) (Addr, bool)
}

// SetLowMemory attaches the low-memory notifier used by AllocMem.
func (s *Space) SetLowMemory(lm LowMemory) {
	s.lowMu.Lock()
	s.lowmem = lm
	s.lowMu.Unlock()
}

func (s *Space) lowMemory() LowMemory {
	s.lowMu.RLock()
	defer s.lowMu.RUnlock()
	return s.lowmem
}

// AllocMem allocates size bytes from the system regions. When no region
// can serve the request and a low-memory notifier is attached, the
// notifier's handlers get the chance to release memory between retries.
func (s *Space) AllocMem(size uint64, flags Flags) (Addr, bool) {
	s.stats.allocCalls.Add(1)
	if size == 0 {
		s.stats.allocFailures.Add(1)
		return Nil, false
	}
	alloc := func() (Addr, bool) { return s.sys.AllocSpan(size, flags) }

	a, ok := alloc()
	if !ok {
		if lm := s.lowMemory(); lm != nil {
			s.log.Debug("[MM] allocation failed, running low-memory handlers",
				"size", size, "flags", flags.String())
			a, ok = lm.Retry(size, flags, alloc)
		}
	}
	if !ok {
		s.stats.allocFailures.Add(1)
		return Nil, false
	}
	s.stats.bytesAllocated.Add(size)
	return a, true
}

// FreeMem returns memory obtained from AllocMem.
func (s *Space) FreeMem(a Addr, size uint64) {
	if a == Nil || size == 0 {
		return
	}
	if !s.sys.FreeSpan(a, size) {
		s.stats.freeRejected.Add(1)
		return
	}
	s.stats.freeCalls.Add(1)
	s.stats.bytesFreed.Add(size)
}

// Avail returns the free bytes in system regions satisfying flags.
func (s *Space) Avail(flags Flags) uint64 {
	return s.sumRegions(flags, (*Region).FreeBytes)
}

// AvailTotal returns the capacity of system regions satisfying flags.
func (s *Space) AvailTotal(flags Flags) uint64 {
	return s.sumRegions(flags, (*Region).Size)
}

// AvailLargest returns the largest free chunk in system regions
// satisfying flags.
func (s *Space) AvailLargest(flags Flags) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var largest uint64
	for r := range s.regions.Values() {
		if r.attrs.Satisfies(flags) {
			largest = max(largest, r.Largest())
		}
	}
	return largest
}

func (s *Space) sumRegions(flags Flags, f func(*Region) uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n uint64
	for r := range s.regions.Values() {
		if r.attrs.Satisfies(flags) {
			n += f(r)
		}
	}
	return n
}
