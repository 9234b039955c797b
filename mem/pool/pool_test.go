package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/execmem/internal/buf"
	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/mem"
)

func TestNew_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := New(f.space, Options{PuddleSize: 1024, Threshold: 2048})
	require.ErrorIs(t, err, ErrBadThreshold)

	_, err = New(f.space, Options{PuddleSize: layout.HeaderSize})
	require.ErrorIs(t, err, ErrBadPuddleSize)

	p, err := New(f.space, Options{Name: "odd", PuddleSize: 1000})
	require.NoError(t, err)
	require.Equal(t, uint64(1008), p.PuddleSize(), "puddle size rounds to the chunk granularity")
	require.Empty(t, p.Puddles())
}

func TestAlloc_FirstPuddleAndPrefix(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 4096, mem.Public)

	a := mustAlloc(t, p, 40, 0)
	puddles := p.Puddles()
	require.Len(t, puddles, 1)
	r := puddles[0]

	require.Equal(t, r.Lower()+layout.PointerSize, a, "block follows the owner prefix")
	h, ok := Owner(f.space, a)
	require.True(t, ok)
	require.Equal(t, r.Header(), h)
	require.Same(t, p, r.Owner())
	require.Equal(t, uint64(4096-layout.HeaderSize), r.Size())
	require.Equal(t, r.Size()-48, r.FreeBytes())

	b := mustAlloc(t, p, 40, 0)
	require.Equal(t, a+48, b, "small allocations share the puddle")
	require.Len(t, p.Puddles(), 1)
	requirePuddlesValid(t, p)
}

func TestAlloc_OversizeGetsOwnPuddle(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	mustAlloc(t, p, 16, 0)
	require.Len(t, p.Puddles(), 1)

	mustAlloc(t, p, 3000, 0)
	puddles := p.Puddles()
	require.Len(t, puddles, 2, "exactly one new puddle")
	require.Equal(t, uint64(2), p.Stats().PuddlesCreated)

	var big *mem.Region
	for _, r := range puddles {
		if r.Size() > 1024 {
			big = r
		}
	}
	require.NotNil(t, big)
	// 3000 + prefix + header, rounded to the page size.
	require.Equal(t, uint64(4096-layout.HeaderSize), big.Size())
	require.Equal(t, uint64(4096-layout.HeaderSize-3008), big.FreeBytes())
	requirePuddlesValid(t, p)
}

func TestAlloc_OversizeHonoursCapability(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	mustAlloc(t, p, 16, 0) // regular puddle from the fast region
	mustAlloc(t, p, 3000, mem.Chip)

	puddles := p.Puddles()
	require.Len(t, puddles, 2)
	big := puddles[1]
	require.Equal(t, uint64(4096-layout.HeaderSize), big.Size())
	require.True(t, big.Attributes().Satisfies(mem.Chip))
	require.Same(t, f.chip, f.space.FindRegion(big.Header()))
	require.False(t, puddles[0].Attributes().Satisfies(mem.Chip))
	requirePuddlesValid(t, p)
}

func TestAlloc_RegularRequestUsesPuddleSize(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	mustAlloc(t, p, 1024-layout.HeaderSize-layout.PointerSize, 0)
	puddles := p.Puddles()
	require.Len(t, puddles, 1)
	require.Equal(t, uint64(1024-layout.HeaderSize), puddles[0].Size())
	require.Zero(t, puddles[0].FreeBytes())
}

func TestAlloc_CapabilityFlags(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 2048, mem.Public)

	a := mustAlloc(t, p, 64, 0)
	require.Same(t, f.fast, f.space.FindRegion(a), "unconstrained requests use the best region")

	c := mustAlloc(t, p, 64, mem.Chip)
	require.Same(t, f.chip, f.space.FindRegion(c), "fast puddles are skipped for chip requests")

	puddles := p.Puddles()
	require.Len(t, puddles, 2)
	require.True(t, puddles[0].Attributes().Satisfies(mem.Fast))
	require.True(t, puddles[1].Attributes().Satisfies(mem.Chip))
	require.Equal(t, int8(10), puddles[0].Pri())
	require.Equal(t, int8(0), puddles[1].Pri())

	// Both puddles satisfy Public; the higher priority one is tried first.
	d := mustAlloc(t, p, 64, 0)
	require.Same(t, f.fast, f.space.FindRegion(d))

	_, ok := p.Alloc(64, mem.DMA24)
	require.False(t, ok)
	require.Len(t, p.Puddles(), 2, "a failed allocation leaves no puddle behind")
}

func TestAlloc_ResortsPuddleWithRoom(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	mustAlloc(t, p, 800, 0) // puddle A, 144 bytes left
	a := p.Puddles()[0]
	mustAlloc(t, p, 800, 0) // A is too small, puddle B is created
	puddles := p.Puddles()
	require.Len(t, puddles, 2)
	b := puddles[1]
	require.Same(t, a, puddles[0], "a new puddle joins the end of its band")
	require.Equal(t, uint64(1), p.Stats().Reorders)

	mustAlloc(t, p, 100, 0) // A is still first and serves it
	require.Equal(t, uint64(32), a.FreeBytes())
	require.Equal(t, uint64(144), b.FreeBytes())

	mustAlloc(t, p, 800, 0) // puddle C
	c := p.Puddles()[2]
	require.Equal(t, uint64(2), p.Stats().Reorders)

	mustAlloc(t, p, 50, 0) // A can't, B can; B keeps 80 and moves behind C
	require.Equal(t, uint64(80), b.FreeBytes())
	puddles = p.Puddles()
	require.Equal(t, []*mem.Region{a, c, b}, puddles)
	require.Equal(t, uint64(3), p.Stats().Reorders)

	mustAlloc(t, p, 100, 0) // C serves it and is left with 32
	require.Equal(t, uint64(32), c.FreeBytes())
	require.Equal(t, []*mem.Region{a, c, b}, p.Puddles(), "a puddle left with slack of 32 bytes or less stays put")
	require.Equal(t, uint64(3), p.Stats().Reorders)
	requirePuddlesValid(t, p)
}

func TestAlloc_Clear(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	a := mustAlloc(t, p, 64, 0)
	b, ok := f.space.Bytes(a, 64)
	require.True(t, ok)
	buf.Fill(b, 0xEE)
	p.Free(a, 64)

	a = mustAlloc(t, p, 64, mem.Clear)
	b, _ = f.space.Bytes(a, 64)
	require.True(t, buf.AllEqual(b, 0))
}

func TestAlloc_SystemExhausted(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	_, ok := p.Alloc(1<<20, 0)
	require.False(t, ok)
	require.Empty(t, p.Puddles())
	require.Equal(t, uint64(1), p.Stats().Failures)

	_, ok = p.Alloc(0, 0)
	require.False(t, ok)
	_, ok = p.Alloc(1<<63, 0)
	require.False(t, ok)
}

func TestFree_LastBlockReleasesPuddle(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 2048, mem.Public)
	before := f.fast.FreeBytes()

	a := mustAlloc(t, p, 100, 0)
	b := mustAlloc(t, p, 200, 0)
	require.Len(t, p.Puddles(), 1)
	h := p.Puddles()[0].Header()

	Free(f.space, a, 100)
	require.Len(t, p.Puddles(), 1, "puddle still holds a block")

	Free(f.space, b, 200)
	require.Empty(t, p.Puddles())
	require.Equal(t, before, f.fast.FreeBytes(), "puddle span went back to the system region")
	require.False(t, f.space.ValidHeader(h))
	require.NoError(t, mem.Verify(f.fast))

	st := p.Stats()
	require.Equal(t, uint64(1), st.PuddlesCreated)
	require.Equal(t, uint64(1), st.PuddlesFreed)
	require.Equal(t, uint64(2), st.Frees)
	require.Equal(t, uint64(300), st.BytesFreed)
	require.Empty(t, f.rec.alerts)
}

func TestFree_NilAndZero(t *testing.T) {
	f := newFixture(t)
	Free(f.space, mem.Nil, 10)
	Free(f.space, 0x12340, 0)
	require.Empty(t, f.rec.alerts)
}

func TestFree_ForeignBlock(t *testing.T) {
	f := newFixture(t)
	newPool(t, f.space, 1024, mem.Public)

	// Plain memory whose "prefix" names no puddle.
	a, ok := f.space.AllocMem(64, mem.Clear)
	require.True(t, ok)
	prefix, _ := f.space.Bytes(a, 8)
	buf.PutU64LE(prefix, uint64(a))

	Free(f.space, a+8, 32)
	require.Equal(t, []mem.AlertCode{mem.AlertBadFreeAddr}, f.rec.codes())
	require.True(t, f.rec.alerts[0].Code.Fatal())
}

func TestFree_OutsideEverything(t *testing.T) {
	f := newFixture(t)
	Free(f.space, 0x8, 16)
	require.Equal(t, []mem.AlertCode{mem.AlertBadFreeAddr}, f.rec.codes())
}

func TestFree_AfterPuddleReleased(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	a := mustAlloc(t, p, 64, 0)
	p.Free(a, 64)
	require.Empty(t, f.rec.alerts)

	p.Free(a, 64)
	require.Equal(t, []mem.AlertCode{mem.AlertBadFreeAddr}, f.rec.codes())
}

func TestFree_SizeBeyondPuddle(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)
	a := mustAlloc(t, p, 64, 0)

	Free(f.space, a, 4096)
	require.Equal(t, []mem.AlertCode{mem.AlertBadFreeAddr}, f.rec.codes())
	require.Len(t, p.Puddles(), 1)
}

func TestPoolFree_WrongPool(t *testing.T) {
	f := newFixture(t)
	p1 := newPool(t, f.space, 1024, mem.Public)
	p2 := newPool(t, f.space, 1024, mem.Public)

	a := mustAlloc(t, p1, 64, 0)
	p2.Free(a, 64)
	require.Equal(t, []mem.AlertCode{mem.AlertBadFreeAddr}, f.rec.codes())
	require.Len(t, p1.Puddles(), 1)
}

func TestFree_DoubleFreeInLivePuddle(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)
	a := mustAlloc(t, p, 64, 0)
	mustAlloc(t, p, 64, 0)

	p.Free(a, 64)
	p.Free(a, 64)
	require.Equal(t, []mem.AlertCode{mem.AlertFreeTwice}, f.rec.codes())
	require.Equal(t, uint64(1), p.Stats().Frees, "the refused free is not counted")
	requirePuddlesValid(t, p)
}

func TestDelete_ReleasesEveryPuddle(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)
	fastBefore, chipBefore := f.fast.FreeBytes(), f.chip.FreeBytes()

	mustAlloc(t, p, 900, 0)
	mustAlloc(t, p, 900, 0)
	mustAlloc(t, p, 100, mem.Chip)
	require.Len(t, p.Puddles(), 3)

	p.Delete()
	require.Empty(t, p.Puddles())
	require.Equal(t, fastBefore, f.fast.FreeBytes())
	require.Equal(t, chipBefore, f.chip.FreeBytes())
	require.Equal(t, uint64(3), p.Stats().PuddlesFreed)
}

func TestVec_RoundTrip(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public)

	v, ok := p.AllocVec(100, mem.Clear)
	require.True(t, ok)
	require.Equal(t, uint64(100), p.VecSize(v))
	b, ok := f.space.Bytes(v, 100)
	require.True(t, ok)
	require.True(t, buf.AllEqual(b, 0))

	p.FreeVec(v)
	require.Empty(t, p.Puddles())
	p.FreeVec(mem.Nil)
	require.Empty(t, f.rec.alerts)

	_, ok = p.AllocVec(0, 0)
	require.False(t, ok)
}

func TestPool_ConcurrentSemProtected(t *testing.T) {
	f := newFixture(t)
	p := newPool(t, f.space, 1024, mem.Public|mem.SemProtected)
	before := f.fast.FreeBytes()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var held []mem.Addr
			size := uint64(8 + 24*w)
			for i := range 300 {
				a, ok := p.Alloc(size, 0)
				if assert.True(t, ok) {
					held = append(held, a)
				}
				if i%3 == 2 {
					for _, h := range held {
						p.Free(h, size)
					}
					held = held[:0]
				}
			}
			for _, h := range held {
				p.Free(h, size)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, f.rec.alerts)
	require.Empty(t, p.Puddles())
	require.Equal(t, before, f.fast.FreeBytes())
	st := p.Stats()
	require.Equal(t, st.Allocs, st.Frees)
	require.Equal(t, st.PuddlesCreated, st.PuddlesFreed)
}
