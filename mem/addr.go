package mem

import "fmt"

// Addr is an address in a Space. Every system region occupies its own
// page-aligned range; address 0 is never mapped.
type Addr uint64

// Nil is the address returned when no memory is available.
const Nil Addr = 0

// String formats the address as hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Add returns a+n.
func (a Addr) Add(n uint64) Addr {
	return a + Addr(n)
}

// Sub returns a-n.
func (a Addr) Sub(n uint64) Addr {
	return a - Addr(n)
}
