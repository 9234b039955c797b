package mem

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joshuapare/execmem/internal/layout"
	"github.com/joshuapare/execmem/internal/logger"
	"github.com/joshuapare/execmem/internal/mmap"
)

// Space owns the system region list, the registry of self-describing
// region headers and the services the allocators share (alert sink,
// logger, system allocator, low-memory notifier).
//
// The region list and header registry are guarded by a reader/writer
// lock: lookups take the shared form, insertion, removal and the system
// allocator take the exclusive form.
type Space struct {
	mu      sync.RWMutex
	regions List[*Region]
	headers map[Addr]*Region
	next    Addr
	closed  bool

	releases []func() error

	sys      SystemAllocator
	alert    Alerter
	log      *slog.Logger
	pageSize uint64
	walls    bool

	lowMu  sync.RWMutex
	lowmem LowMemory

	stats spaceStats
}

// Option configures a Space.
type Option func(*Space)

// WithAlerter sets the alert sink. The default is PanicAlerter.
func WithAlerter(a Alerter) Option {
	return func(s *Space) { s.alert = a }
}

// WithLogger sets the logger. The default is logger.L.
func WithLogger(l *slog.Logger) Option {
	return func(s *Space) { s.log = l }
}

// WithPageSize sets the page size used to round system regions and
// oversize puddles. It must be a power of two no smaller than the chunk
// granularity.
func WithPageSize(n uint64) Option {
	return func(s *Space) { s.pageSize = n }
}

// WithWalls enables boundary walls around pooled allocations.
func WithWalls(on bool) Option {
	return func(s *Space) { s.walls = on }
}

// WithSystemAllocator wraps the system allocator. wrap receives the
// Space's own allocator and returns the one region lifecycle will use.
func WithSystemAllocator(wrap func(base SystemAllocator) SystemAllocator) Option {
	return func(s *Space) { s.sys = wrap(s.sys) }
}

// NewSpace creates an empty Space. Add system regions with AddRegion.
func NewSpace(opts ...Option) (*Space, error) {
	s := &Space{
		headers:  make(map[Addr]*Region),
		next:     layout.BaseAddress,
		alert:    PanicAlerter,
		pageSize: layout.DefaultPageSize,
	}
	s.sys = spaceAllocator{s}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.L
	}
	if !layout.IsPowerOfTwo(s.pageSize) || s.pageSize < layout.ChunkTotal {
		return nil, fmt.Errorf("%w: %d", ErrBadPageSize, s.pageSize)
	}
	return s, nil
}

// RegionSpec describes a system region to add to a Space.
type RegionSpec struct {
	Name       string
	Size       uint64 // rounded up to the page size
	Attributes Flags  // physical capability bits
	Priority   int8

	// Backing, when set, is used instead of a fresh anonymous mapping.
	// It must hold at least the page-rounded Size.
	Backing []byte
}

// AddRegion adds a system region and returns it. Regions are kept in
// descending priority order; each one gets its own address range followed
// by an unmapped guard page.
func (s *Space) AddRegion(spec RegionSpec) (*Region, error) {
	if spec.Size == 0 {
		return nil, fmt.Errorf("%w: region %q has no size", ErrBadSize, spec.Name)
	}
	size := layout.AlignPage(spec.Size, s.pageSize)
	if size < spec.Size {
		return nil, fmt.Errorf("%w: region %q size %d overflows", ErrBadSize, spec.Name, spec.Size)
	}

	var (
		data    []byte
		release func() error
	)
	if spec.Backing != nil {
		if uint64(len(spec.Backing)) < size {
			return nil, fmt.Errorf("%w: region %q backing holds %d bytes, need %d",
				ErrBadSize, spec.Name, len(spec.Backing), size)
		}
		data = spec.Backing[:size:size]
	} else {
		var err error
		data, release, err = mmap.Anon(int(size))
		if err != nil {
			return nil, fmt.Errorf("region %q: %w", spec.Name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if release != nil {
			_ = release()
		}
		return nil, ErrClosed
	}

	r := newRegion(spec.Name, s.next, data, spec.Attributes.Physical(), spec.Priority, s.alert)
	s.next = s.next.Add(size + s.pageSize)
	s.regions.Enqueue(&r.node)
	if release != nil {
		s.releases = append(s.releases, release)
	}

	s.log.Debug("[MM] added system region",
		"name", spec.Name,
		"lower", r.lower.String(),
		"upper", r.upper.String(),
		"attrs", r.attrs.String(),
		"pri", spec.Priority,
	)
	return r, nil
}

// Close releases the backing memory of every system region. Addresses
// handed out by the Space must not be used afterwards.
func (s *Space) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, release := range s.releases {
		errs = append(errs, release())
	}
	s.releases = nil
	for n := range s.regions.All() {
		s.regions.Remove(n)
		n.Value.mem = nil
		n.Value.first = Nil
		n.Value.free = 0
	}
	clear(s.headers)
	return errors.Join(errs...)
}

// FindRegion returns the system region containing a, or nil.
func (s *Space) FindRegion(a Addr) *Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(a)
}

func (s *Space) findLocked(a Addr) *Region {
	for r := range s.regions.Values() {
		if a >= r.lower && a <= r.upper {
			return r
		}
	}
	return nil
}

// Regions returns a snapshot of the system region list in priority order.
func (s *Space) Regions() []*Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Region, 0, s.regions.Len())
	for r := range s.regions.Values() {
		out = append(out, r)
	}
	return out
}

// Bytes returns the memory of [a, a+n). The range must lie within one
// system region.
func (s *Space) Bytes(a Addr, n uint64) ([]byte, bool) {
	r := s.FindRegion(a)
	if r == nil {
		return nil, false
	}
	return r.Bytes(a, n)
}

// Header returns the live self-describing region whose header is at a.
func (s *Space) Header(a Addr) (*Region, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.headers[a]
	return r, ok
}

// PageSize returns the page size.
func (s *Space) PageSize() uint64 { return s.pageSize }

// Walls reports whether boundary walls are enabled.
func (s *Space) Walls() bool { return s.walls }

// Logger returns the logger of the Space.
func (s *Space) Logger() *slog.Logger { return s.log }

// Raise reports a to the alert sink, forcing the DeadEnd bit.
func (s *Space) Raise(a *Alert) {
	a.Code |= DeadEnd
	s.alert.Alert(a)
}
