// Package metrics exports Space, pool and low-memory counters to
// Prometheus.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshuapare/execmem/mem"
	"github.com/joshuapare/execmem/mem/lowmem"
	"github.com/joshuapare/execmem/mem/pool"
)

// Collector reads the counters at scrape time. Pools scraped while other
// goroutines use them should be SemProtected.
type Collector struct {
	space *mem.Space

	mu    sync.Mutex
	pools []*pool.Pool
	chain *lowmem.Chain

	regionBytes   *prometheus.Desc
	regionFree    *prometheus.Desc
	regionLargest *prometheus.Desc

	allocCalls     *prometheus.Desc
	allocFailures  *prometheus.Desc
	freeCalls      *prometheus.Desc
	regionsCreated *prometheus.Desc
	regionsFreed   *prometheus.Desc

	poolPuddles  *prometheus.Desc
	poolCapacity *prometheus.Desc
	poolFree     *prometheus.Desc
	poolAllocs   *prometheus.Desc
	poolFrees    *prometheus.Desc
	poolFailures *prometheus.Desc
	poolReorders *prometheus.Desc

	lowmemHandlers *prometheus.Desc
	lowmemChecks   *prometheus.Desc
	lowmemRetries  *prometheus.Desc
}

// New returns a collector for s. Metric names are prefixed with namespace.
func New(namespace string, s *mem.Space) *Collector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "", n) }
	return &Collector{
		space: s,

		regionBytes: prometheus.NewDesc(name("region_bytes"),
			"Capacity of a system region.", []string{"region"}, nil),
		regionFree: prometheus.NewDesc(name("region_free_bytes"),
			"Free bytes in a system region.", []string{"region"}, nil),
		regionLargest: prometheus.NewDesc(name("region_largest_free_bytes"),
			"Largest free chunk in a system region.", []string{"region"}, nil),

		allocCalls: prometheus.NewDesc(name("alloc_calls_total"),
			"Plain allocation calls.", nil, nil),
		allocFailures: prometheus.NewDesc(name("alloc_failures_total"),
			"Plain allocation calls that returned no memory.", nil, nil),
		freeCalls: prometheus.NewDesc(name("free_calls_total"),
			"Plain free calls.", nil, nil),
		regionsCreated: prometheus.NewDesc(name("regions_created_total"),
			"Self-describing regions created.", nil, nil),
		regionsFreed: prometheus.NewDesc(name("regions_freed_total"),
			"Self-describing regions released.", nil, nil),

		poolPuddles: prometheus.NewDesc(name("pool_puddles"),
			"Puddles linked in a pool.", []string{"pool"}, nil),
		poolCapacity: prometheus.NewDesc(name("pool_capacity_bytes"),
			"Usable bytes across the puddles of a pool.", []string{"pool"}, nil),
		poolFree: prometheus.NewDesc(name("pool_free_bytes"),
			"Free bytes across the puddles of a pool.", []string{"pool"}, nil),
		poolAllocs: prometheus.NewDesc(name("pool_allocs_total"),
			"Successful pool allocations.", []string{"pool"}, nil),
		poolFrees: prometheus.NewDesc(name("pool_frees_total"),
			"Pool frees.", []string{"pool"}, nil),
		poolFailures: prometheus.NewDesc(name("pool_failures_total"),
			"Pool allocations that returned no memory.", []string{"pool"}, nil),
		poolReorders: prometheus.NewDesc(name("pool_reorders_total"),
			"Puddles re-sorted into their pool after an allocation.", []string{"pool"}, nil),

		lowmemHandlers: prometheus.NewDesc(name("lowmem_handlers"),
			"Registered low-memory handlers.", nil, nil),
		lowmemChecks: prometheus.NewDesc(name("lowmem_checks_total"),
			"Low-memory chain checks.", nil, nil),
		lowmemRetries: prometheus.NewDesc(name("lowmem_retries_total"),
			"Low-memory checks that asked for a retry.", nil, nil),
	}
}

// AddPool includes p in the exported metrics.
func (c *Collector) AddPool(p *pool.Pool) {
	c.mu.Lock()
	c.pools = append(c.pools, p)
	c.mu.Unlock()
}

// SetChain includes the low-memory chain in the exported metrics.
func (c *Collector) SetChain(ch *lowmem.Chain) {
	c.mu.Lock()
	c.chain = ch
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.regionBytes, c.regionFree, c.regionLargest,
		c.allocCalls, c.allocFailures, c.freeCalls, c.regionsCreated, c.regionsFreed,
		c.poolPuddles, c.poolCapacity, c.poolFree,
		c.poolAllocs, c.poolFrees, c.poolFailures, c.poolReorders,
		c.lowmemHandlers, c.lowmemChecks, c.lowmemRetries,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	gauge := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	for _, r := range c.space.Snapshot() {
		gauge(c.regionBytes, r.Size, r.Name)
		gauge(c.regionFree, r.Free, r.Name)
		gauge(c.regionLargest, r.Largest, r.Name)
	}

	st := c.space.Stats()
	counter(c.allocCalls, st.AllocCalls)
	counter(c.allocFailures, st.AllocFailures)
	counter(c.freeCalls, st.FreeCalls)
	counter(c.regionsCreated, st.RegionsCreated)
	counter(c.regionsFreed, st.RegionsFreed)

	c.mu.Lock()
	pools := append([]*pool.Pool(nil), c.pools...)
	chain := c.chain
	c.mu.Unlock()

	for _, p := range pools {
		ps := p.Stats()
		gauge(c.poolPuddles, uint64(ps.Puddles), p.Name())
		gauge(c.poolCapacity, ps.Capacity, p.Name())
		gauge(c.poolFree, ps.FreeBytes, p.Name())
		counter(c.poolAllocs, ps.Allocs, p.Name())
		counter(c.poolFrees, ps.Frees, p.Name())
		counter(c.poolFailures, ps.Failures, p.Name())
		counter(c.poolReorders, ps.Reorders, p.Name())
	}

	if chain != nil {
		ls := chain.Stats()
		gauge(c.lowmemHandlers, uint64(ls.Handlers))
		counter(c.lowmemChecks, ls.Checks)
		counter(c.lowmemRetries, ls.Retries)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
