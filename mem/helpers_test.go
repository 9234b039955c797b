package mem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testBase Addr = 0x1000

// recorder is an Alerter that remembers alerts instead of panicking.
type recorder struct {
	alerts []*Alert
}

func (r *recorder) Alert(a *Alert) { r.alerts = append(r.alerts, a) }

func (r *recorder) last() *Alert {
	if len(r.alerts) == 0 {
		return nil
	}
	return r.alerts[len(r.alerts)-1]
}

// newTestArena returns a region of size bytes at testBase.
func newTestArena(t testing.TB, size int, al Alerter) *Region {
	t.Helper()
	r, err := NewArena("test", testBase, make([]byte, size), Public|Fast, al)
	require.NoError(t, err)
	return r
}

type chunk struct {
	Addr Addr
	Size uint64
}

// chunksOf collects the free list of r.
func chunksOf(r *Region) []chunk {
	var out []chunk
	for a, n := range r.Chunks() {
		out = append(out, chunk{a, n})
	}
	return out
}

// mustAlloc allocates or fails the test.
func mustAlloc(t testing.TB, r *Region, size uint64, flags Flags) Addr {
	t.Helper()
	a, ok := r.Allocate(size, flags)
	require.True(t, ok, "Allocate(%d, %s) failed on %s", size, flags, r)
	return a
}

// requireValid fails the test when r's free list is damaged.
func requireValid(t testing.TB, r *Region) {
	t.Helper()
	require.NoError(t, Verify(r))
}

// newTestSpace creates a Space with heap-backed regions so tests do not
// depend on mmap.
func newTestSpace(t testing.TB, opts ...Option) *Space {
	t.Helper()
	s, err := NewSpace(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func addHeapRegion(t testing.TB, s *Space, name string, size uint64, attrs Flags, pri int8) *Region {
	t.Helper()
	r, err := s.AddRegion(RegionSpec{
		Name:       name,
		Size:       size,
		Attributes: attrs,
		Priority:   pri,
		Backing:    make([]byte, size),
	})
	require.NoError(t, err)
	return r
}
