package mem

import (
	"math/rand"
	"testing"
)

// Benchmark_Allocate_Fragmented measures allocation over a free list with
// many small gaps.
func Benchmark_Allocate_Fragmented(b *testing.B) {
	r := newTestArena(b, 1<<20, nil)
	var keep []Addr
	for {
		a, ok := r.Allocate(64, 0)
		if !ok {
			break
		}
		keep = append(keep, a)
	}
	for i := 0; i < len(keep); i += 2 {
		r.Deallocate(keep[i], 64)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		a, ok := r.Allocate(48, 0)
		if !ok {
			b.Fatal("allocation failed")
		}
		r.Deallocate(a, 48)
	}
}

func Benchmark_AllocFree_Random(b *testing.B) {
	r := newTestArena(b, 1<<20, nil)
	rng := rand.New(rand.NewSource(1))
	live := make([]block, 0, 1024)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if len(live) < cap(live) && rng.Intn(2) == 0 {
			size := uint64(16 + rng.Intn(1024))
			if a, ok := r.Allocate(size, 0); ok {
				live = append(live, block{a, size})
			}
			continue
		}
		if len(live) == 0 {
			continue
		}
		j := rng.Intn(len(live))
		r.Deallocate(live[j].a, live[j].size)
		live[j] = live[len(live)-1]
		live = live[:len(live)-1]
	}
}

func Benchmark_Space_AllocMem(b *testing.B) {
	s := newTestSpace(b)
	addHeapRegion(b, s, "fast", 1<<20, Public|Fast, 0)

	b.ResetTimer()
	for range b.N {
		a, ok := s.AllocMem(256, 0)
		if !ok {
			b.Fatal("allocation failed")
		}
		s.FreeMem(a, 256)
	}
}
