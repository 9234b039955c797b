package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/execmem/mem"
)

type recorder struct {
	alerts []*mem.Alert
}

func (r *recorder) Alert(a *mem.Alert) { r.alerts = append(r.alerts, a) }

func (r *recorder) codes() []mem.AlertCode {
	var out []mem.AlertCode
	for _, a := range r.alerts {
		out = append(out, a.Code.Class())
	}
	return out
}

type fixture struct {
	space *mem.Space
	fast  *mem.Region
	chip  *mem.Region
	rec   *recorder
}

// newFixture builds a Space with a high-priority fast region and a chip
// region, recording alerts instead of panicking.
func newFixture(t *testing.T, opts ...mem.Option) *fixture {
	t.Helper()
	f := &fixture{rec: &recorder{}}
	s, err := mem.NewSpace(append([]mem.Option{mem.WithAlerter(f.rec)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	f.space = s

	f.fast, err = s.AddRegion(mem.RegionSpec{
		Name: "fast", Size: 64 * 1024, Attributes: mem.Public | mem.Fast, Priority: 10,
		Backing: make([]byte, 64*1024),
	})
	require.NoError(t, err)
	f.chip, err = s.AddRegion(mem.RegionSpec{
		Name: "chip", Size: 32 * 1024, Attributes: mem.Public | mem.Chip, Priority: 0,
		Backing: make([]byte, 32*1024),
	})
	require.NoError(t, err)
	return f
}

func newPool(t *testing.T, s *mem.Space, puddle uint64, req mem.Flags) *Pool {
	t.Helper()
	p, err := New(s, Options{Name: t.Name(), Requirements: req, PuddleSize: puddle, Threshold: puddle / 2})
	require.NoError(t, err)
	return p
}

func mustAlloc(t *testing.T, p *Pool, size uint64, flags mem.Flags) mem.Addr {
	t.Helper()
	a, ok := p.Alloc(size, flags)
	require.True(t, ok, "Alloc(%d, %s)", size, flags)
	return a
}

func requirePuddlesValid(t *testing.T, p *Pool) {
	t.Helper()
	for _, r := range p.Puddles() {
		require.NoError(t, mem.Verify(r))
	}
}
