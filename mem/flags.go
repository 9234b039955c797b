package mem

import (
	"fmt"
	"math/bits"
	"strings"
)

// Flags is the bitset of allocation requirements and region attributes.
type Flags uint32

const (
	Public Flags = 1 << 0 // accessible to every task
	Chip   Flags = 1 << 1 // reachable by custom chips
	Fast   Flags = 1 << 2 // CPU-only memory
	Local  Flags = 1 << 8 // survives a reset
	DMA24  Flags = 1 << 9 // within the 24-bit DMA range
	Kick   Flags = 1 << 10
	Bit31  Flags = 1 << 12 // within the 31-bit address range

	// Clear zeroes the allocation on success.
	Clear Flags = 1 << 16
	// Reverse allocates from the highest fitting chunk (last fit).
	Reverse Flags = 1 << 18
	// SemProtected makes a pool take its lock around every operation.
	SemProtected Flags = 1 << 20
	// NoExpunge makes the low-memory check a no-op.
	NoExpunge Flags = 1 << 31

	// PhysicalMask selects the capability bits a region must carry to
	// satisfy a request.
	PhysicalMask = Public | Chip | Fast | Local | DMA24 | Kick | Bit31
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{Public, "public"},
	{Chip, "chip"},
	{Fast, "fast"},
	{Local, "local"},
	{DMA24, "24bitdma"},
	{Kick, "kick"},
	{Bit31, "31bit"},
	{Clear, "clear"},
	{Reverse, "reverse"},
	{SemProtected, "sem_protected"},
	{NoExpunge, "no_expunge"},
}

// Physical returns only the capability bits of f.
func (f Flags) Physical() Flags {
	return f & PhysicalMask
}

// Satisfies reports whether a region with attributes f can serve a request
// for the physical bits of want.
func (f Flags) Satisfies(want Flags) bool {
	return want.Physical()&^f == 0
}

// String returns the flag names joined with "|".
func (f Flags) String() string {
	if f == 0 {
		return "any"
	}
	names := make([]string, 0, bits.OnesCount32(uint32(f)))
	rest := f
	for _, fn := range flagNames {
		if f&fn.f != 0 {
			names = append(names, fn.name)
			rest &^= fn.f
		}
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// ParseFlags converts flag names (case-insensitive, as printed by String)
// into a bitset.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
next:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || n == "any" {
			continue
		}
		for _, fn := range flagNames {
			if fn.name == n {
				f |= fn.f
				continue next
			}
		}
		return 0, fmt.Errorf("%w: %q", ErrBadFlag, n)
	}
	return f, nil
}

// NodeType tags list nodes so stale references can be detected.
type NodeType uint8

const (
	NodeUnknown NodeType = 0
	NodeMemory  NodeType = 10
	NodeHandler NodeType = 11
)
