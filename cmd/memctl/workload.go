package main

import (
	"fmt"
	"math/rand"

	"github.com/joshuapare/execmem/internal/config"
	"github.com/joshuapare/execmem/mem"
	"github.com/joshuapare/execmem/mem/lowmem"
	"github.com/joshuapare/execmem/mem/pool"
)

type block struct {
	addr mem.Addr
	size uint64
}

// workload drives random allocations against one pool and the plain
// allocator. A low-memory handler releases the oldest outstanding blocks
// when either runs dry.
type workload struct {
	sys     *config.System
	pool    *pool.Pool
	chain   *lowmem.Chain
	rng     *rand.Rand
	maxSize uint64

	pooled []block
	plain  []block

	steps    uint64
	failures uint64
	released uint64
}

type workloadStats struct {
	Steps    uint64        `json:"steps"`
	Failures uint64        `json:"failures"`
	Released uint64        `json:"released"`
	Live     int           `json:"live"`
	Pool     pool.Stats    `json:"pool"`
	Space    mem.Stats     `json:"space"`
	LowMem   lowmem.Stats  `json:"lowmem"`
	Regions  []regionUsage `json:"regions"`
}

type regionUsage struct {
	Name string `json:"name"`
	Size uint64 `json:"size"`
	Free uint64 `json:"free"`
}

func newWorkload(sys *config.System, poolName string, seed int64, maxSize uint64) (*workload, error) {
	p := sys.Pool(poolName)
	if p == nil {
		return nil, fmt.Errorf("layout has no pool %q", poolName)
	}
	if maxSize == 0 {
		return nil, fmt.Errorf("max size must be positive")
	}
	w := &workload{
		sys:     sys,
		pool:    p,
		chain:   lowmem.New(),
		rng:     rand.New(rand.NewSource(seed)),
		maxSize: maxSize,
	}
	w.chain.Add("workload", 0, w.release, nil)
	sys.Space.SetLowMemory(w.chain)
	return w, nil
}

// release frees the older half of the outstanding blocks.
func (w *workload) release(req *lowmem.Request, _ any) lowmem.Status {
	n := (len(w.pooled) + 1) / 2
	m := (len(w.plain) + 1) / 2
	if n == 0 && m == 0 {
		return lowmem.DidNothing
	}
	for _, b := range w.pooled[:n] {
		w.pool.Free(b.addr, b.size)
	}
	for _, b := range w.plain[:m] {
		w.sys.Space.FreeMem(b.addr, b.size)
	}
	w.pooled = w.pooled[n:]
	w.plain = w.plain[m:]
	w.released += uint64(n + m)
	return lowmem.TryAgain
}

func (w *workload) randomFlags() mem.Flags {
	var f mem.Flags
	if w.rng.Intn(4) == 0 {
		f |= mem.Reverse
	}
	if w.rng.Intn(4) == 0 {
		f |= mem.Clear
	}
	return f
}

// step performs one random operation and verifies the touched structures.
func (w *workload) step() error {
	w.steps++
	size := 1 + uint64(w.rng.Int63n(int64(w.maxSize)))
	flags := w.randomFlags()

	switch op := w.rng.Intn(10); {
	case op < 5:
		a, ok := w.pool.Alloc(size, flags)
		if !ok {
			a, ok = w.chain.Retry(size, flags, func() (mem.Addr, bool) {
				return w.pool.Alloc(size, flags)
			})
		}
		if !ok {
			w.failures++
			break
		}
		w.pooled = append(w.pooled, block{a, size})
	case op < 6:
		a, ok := w.sys.Space.AllocMem(size, flags)
		if !ok {
			w.failures++
			break
		}
		w.plain = append(w.plain, block{a, size})
	case op < 9:
		if len(w.pooled) > 0 {
			i := w.rng.Intn(len(w.pooled))
			w.pool.Free(w.pooled[i].addr, w.pooled[i].size)
			w.pooled = append(w.pooled[:i], w.pooled[i+1:]...)
		}
	default:
		if len(w.plain) > 0 {
			i := w.rng.Intn(len(w.plain))
			w.sys.Space.FreeMem(w.plain[i].addr, w.plain[i].size)
			w.plain = append(w.plain[:i], w.plain[i+1:]...)
		}
	}
	return w.verify()
}

func (w *workload) verify() error {
	for _, r := range w.pool.Puddles() {
		if err := mem.Verify(r); err != nil {
			return fmt.Errorf("step %d: puddle %s: %w", w.steps, r.Header(), err)
		}
	}
	for _, r := range w.sys.Space.Regions() {
		if err := mem.Verify(r); err != nil {
			return fmt.Errorf("step %d: %w", w.steps, err)
		}
	}
	return nil
}

// drain frees every outstanding block.
func (w *workload) drain() {
	for _, b := range w.pooled {
		w.pool.Free(b.addr, b.size)
	}
	for _, b := range w.plain {
		w.sys.Space.FreeMem(b.addr, b.size)
	}
	w.pooled, w.plain = nil, nil
}

func (w *workload) stats() workloadStats {
	st := workloadStats{
		Steps:    w.steps,
		Failures: w.failures,
		Released: w.released,
		Live:     len(w.pooled) + len(w.plain),
		Pool:     w.pool.Stats(),
		Space:    w.sys.Space.Stats(),
		LowMem:   w.chain.Stats(),
	}
	for _, r := range w.sys.Space.Snapshot() {
		st.Regions = append(st.Regions, regionUsage{Name: r.Name, Size: r.Size, Free: r.Free})
	}
	return st
}
