// Package lowmem runs the chain of low-memory handlers that allocators
// consult when they run out of memory.
//
// Handlers are kept in priority order. A check walks the chain, calling
// each handler until one reports that it released memory (TryAgain). The
// caller then retries its allocation and, if that fails again, calls
// Check with the same ScanState to resume at the handler that asked for
// the retry. Only one check runs at a time across the whole chain.
package lowmem

import (
	"sync"
	"sync/atomic"

	"github.com/joshuapare/execmem/mem"
)

// Status is the result of a handler or a check.
type Status int

const (
	// AllDone: the handler released everything it could.
	AllDone Status = -1
	// DidNothing: nothing was released.
	DidNothing Status = 0
	// TryAgain: memory was released; retry the allocation.
	TryAgain Status = 1
)

func (s Status) String() string {
	switch s {
	case AllDone:
		return "all-done"
	case DidNothing:
		return "did-nothing"
	case TryAgain:
		return "try-again"
	}
	return "unknown"
}

// HandlerFlags are set on the request by the chain.
type HandlerFlags uint32

// Recycle is set while handlers are being re-run after a TryAgain.
const Recycle HandlerFlags = 1 << 0

// Request describes the failed allocation passed to handlers.
type Request struct {
	Size         uint64
	RequestFlags mem.Flags
	Flags        HandlerFlags
}

// Handler releases memory in response to a request. data is the value
// given to Add. Handlers may remove themselves from the chain but must
// not call Check.
type Handler func(req *Request, data any) Status

// Handle is a registered handler.
type Handle struct {
	node mem.Node[*Handle]
	fn   Handler
	data any
}

// Name returns the name given to Add.
func (h *Handle) Name() string { return h.node.Name }

// Chain is a priority-ordered list of low-memory handlers.
type Chain struct {
	// scan serializes checks; mu guards the list itself, so handlers can
	// add and remove entries while a check runs.
	scan sync.Mutex
	mu   sync.Mutex
	list mem.List[*Handle]

	checks      atomic.Uint64
	invocations atomic.Uint64
	retries     atomic.Uint64
}

// New returns an empty chain.
func New() *Chain {
	return &Chain{}
}

// Add registers fn with priority pri. Higher priorities run first.
func (c *Chain) Add(name string, pri int8, fn Handler, data any) *Handle {
	h := &Handle{fn: fn, data: data}
	h.node.Type = mem.NodeHandler
	h.node.Name = name
	h.node.Pri = pri
	h.node.Value = h

	c.mu.Lock()
	c.list.Enqueue(&h.node)
	c.mu.Unlock()
	return h
}

// Remove unregisters h. It reports false when h was not registered.
func (c *Chain) Remove(h *Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Remove(&h.node)
}

// Len returns the number of registered handlers.
func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// Names returns the handler names in invocation order.
func (c *Chain) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, c.list.Len())
	for n := c.list.Front(); n != nil; n = n.Next() {
		out = append(out, n.Name)
	}
	return out
}

// ScanState is the caller-owned cursor of a resumable check.
type ScanState struct {
	Request Request

	started bool
	cur     *mem.Node[*Handle]
	next    *mem.Node[*Handle]
}

// NewScan starts a scan for a failed allocation of size bytes.
func NewScan(size uint64, flags mem.Flags) *ScanState {
	return &ScanState{Request: Request{Size: size, RequestFlags: flags}}
}

// Check runs handlers from the cursor in st until one returns TryAgain,
// which is returned with the cursor left on that handler. When the chain
// is exhausted Check returns DidNothing; further calls with the same state
// keep returning DidNothing. A request flagged NoExpunge returns
// DidNothing without touching the chain.
func (c *Chain) Check(st *ScanState) Status {
	if st.Request.RequestFlags&mem.NoExpunge != 0 {
		return DidNothing
	}

	c.scan.Lock()
	defer c.scan.Unlock()
	c.checks.Add(1)

	c.mu.Lock()
	n := c.resume(st)
	c.mu.Unlock()

	for n != nil {
		c.mu.Lock()
		next := n.Next()
		c.mu.Unlock()
		st.cur, st.next = n, next

		c.invocations.Add(1)
		if n.Value.fn(&st.Request, n.Value.data) == TryAgain {
			st.Request.Flags |= Recycle
			c.retries.Add(1)
			return TryAgain
		}
		st.Request.Flags &^= Recycle

		c.mu.Lock()
		n = c.advance(n, next)
		c.mu.Unlock()
	}
	st.cur, st.next = nil, nil
	return DidNothing
}

// resume returns the node a check should start from. mu must be held.
func (c *Chain) resume(st *ScanState) *mem.Node[*Handle] {
	if !st.started {
		st.started = true
		return c.list.Front()
	}
	if st.cur == nil {
		return nil
	}
	if st.cur.Linked() {
		return st.cur
	}
	// The handler that asked for the retry has left the chain since.
	if st.next != nil && st.next.Linked() {
		return st.next
	}
	return nil
}

// advance returns the node after n, given the successor captured before
// n ran. mu must be held.
func (c *Chain) advance(n, next *mem.Node[*Handle]) *mem.Node[*Handle] {
	if next == nil || next.Linked() {
		return next
	}
	// The captured successor was removed while n ran.
	if n.Linked() {
		return n.Next()
	}
	return nil
}

// Retry implements mem.LowMemory: it calls alloc after every TryAgain
// until alloc succeeds or the chain has nothing more to offer.
func (c *Chain) Retry(size uint64, flags mem.Flags, alloc func() (mem.Addr, bool)) (mem.Addr, bool) {
	st := NewScan(size, flags)
	for c.Check(st) == TryAgain {
		if a, ok := alloc(); ok {
			return a, true
		}
	}
	return mem.Nil, false
}

// Stats holds chain counters.
type Stats struct {
	Handlers    int    `json:"handlers"`
	Checks      uint64 `json:"checks"`
	Invocations uint64 `json:"invocations"`
	Retries     uint64 `json:"retries"`
}

// Stats returns the chain counters.
func (c *Chain) Stats() Stats {
	return Stats{
		Handlers:    c.Len(),
		Checks:      c.checks.Load(),
		Invocations: c.invocations.Load(),
		Retries:     c.retries.Load(),
	}
}

var _ mem.LowMemory = (*Chain)(nil)
