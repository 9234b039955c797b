package config

import (
	"github.com/pkg/errors"

	"github.com/joshuapare/execmem/mem"
	"github.com/joshuapare/execmem/mem/pool"
)

// System is a Space and its pools built from a Layout.
type System struct {
	Space *mem.Space
	Pools []*pool.Pool
}

// Build creates a Space with the layout's regions and pools. opts are
// applied after the layout's own page size and wall settings.
func (l *Layout) Build(opts ...mem.Option) (*System, error) {
	var base []mem.Option
	if l.PageSize != 0 {
		base = append(base, mem.WithPageSize(uint64(l.PageSize)))
	}
	if l.Walls {
		base = append(base, mem.WithWalls(true))
	}
	s, err := mem.NewSpace(append(base, opts...)...)
	if err != nil {
		return nil, errors.Wrap(err, "create space")
	}

	sys := &System{Space: s}
	for _, r := range l.Regions {
		attrs, err := mem.ParseFlags(r.Attributes)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "region %q", r.Name)
		}
		if _, err := s.AddRegion(mem.RegionSpec{
			Name:       r.Name,
			Size:       uint64(r.Size),
			Attributes: attrs,
			Priority:   r.Priority,
		}); err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "region %q", r.Name)
		}
	}

	for _, pc := range l.Pools {
		req, err := mem.ParseFlags(pc.Requirements)
		if err != nil {
			_ = sys.Close()
			return nil, errors.Wrapf(err, "pool %q", pc.Name)
		}
		p, err := pool.New(s, pool.Options{
			Name:         pc.Name,
			Requirements: req,
			PuddleSize:   uint64(pc.PuddleSize),
			Threshold:    uint64(pc.Threshold),
		})
		if err != nil {
			_ = sys.Close()
			return nil, errors.Wrapf(err, "pool %q", pc.Name)
		}
		sys.Pools = append(sys.Pools, p)
	}
	return sys, nil
}

// Pool returns the pool with the given name, or nil.
func (s *System) Pool(name string) *pool.Pool {
	for _, p := range s.Pools {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Close deletes the pools and releases the Space.
func (s *System) Close() error {
	for _, p := range s.Pools {
		p.Delete()
	}
	s.Pools = nil
	return s.Space.Close()
}
