package mem

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/execmem/internal/layout"
)

type block struct {
	a    Addr
	size uint64
}

// requireDisjoint checks that live blocks and free chunks never overlap and
// together account for the whole region.
func requireDisjoint(t *testing.T, r *Region, live []block) {
	t.Helper()
	used := make([]bool, r.Size()/layout.ChunkTotal)
	mark := func(a Addr, n uint64, what string) {
		for off := uint64(a-r.Lower()) / layout.ChunkTotal; n > 0; off++ {
			require.False(t, used[off], "%s at %s overlaps other memory", what, a)
			used[off] = true
			n -= min(n, layout.ChunkTotal)
		}
	}
	var liveBytes uint64
	for _, b := range live {
		require.True(t, r.Contains(b.a, b.size))
		n := layout.AlignChunk(b.size)
		mark(b.a, n, "block")
		liveBytes += n
	}
	for a, n := range r.Chunks() {
		mark(a, n, "chunk")
	}
	require.Equal(t, r.Size(), liveBytes+r.FreeBytes())
}

func Test_Fuzz_RandomAllocFree_Invariants(t *testing.T) {
	r := newTestArena(t, 16*1024, nil)
	rng := rand.New(rand.NewSource(42)) // Fixed seed for reproducibility

	var live []block
	for i := range 2000 {
		if len(live) == 0 || rng.Intn(3) != 0 {
			size := uint64(1 + rng.Intn(700))
			var fl Flags
			if rng.Intn(2) == 0 {
				fl = Reverse
			}
			if a, ok := r.Allocate(size, fl); ok {
				live = append(live, block{a, size})
			}
		} else {
			j := rng.Intn(len(live))
			r.Deallocate(live[j].a, live[j].size)
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		require.NoError(t, Verify(r), "step %d", i)
		if i%50 == 0 {
			requireDisjoint(t, r, live)
		}
	}

	for _, b := range live {
		r.Deallocate(b.a, b.size)
	}
	require.Equal(t, []chunk{{testBase, 16 * 1024}}, chunksOf(r))
}

func FuzzAllocFree(f *testing.F) {
	f.Add([]byte{10, 20, 0x81, 30, 0x02, 0x83})
	f.Add([]byte{0xFF, 0xFF, 0x80, 0x80, 1, 1, 1})
	f.Fuzz(func(t *testing.T, ops []byte) {
		r := newTestArena(t, 4096, nil)
		var live []block
		for _, op := range ops {
			if op&0x80 != 0 && len(live) > 0 {
				j := int(op&0x7F) % len(live)
				r.Deallocate(live[j].a, live[j].size)
				live = append(live[:j], live[j+1:]...)
			} else {
				size := uint64(op&0x7F)*8 + 1
				fl := Flags(0)
				if op&0x01 != 0 {
					fl = Reverse
				}
				if a, ok := r.Allocate(size, fl); ok {
					live = append(live, block{a, size})
				}
			}
			require.NoError(t, Verify(r))
		}
		requireDisjoint(t, r, live)
	})
}
