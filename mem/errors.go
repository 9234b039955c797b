package mem

import "errors"

var (
	// ErrBadSize indicates a size that is zero, too small, or not representable.
	ErrBadSize = errors.New("mem: bad size")

	// ErrBadFlag indicates an unknown flag name.
	ErrBadFlag = errors.New("mem: unknown flag")

	// ErrBadPageSize indicates a page size that is not a power of two or is
	// smaller than the chunk granularity.
	ErrBadPageSize = errors.New("mem: bad page size")

	// ErrClosed indicates use of a Space after Close.
	ErrClosed = errors.New("mem: space closed")

	// ErrCorrupt is wrapped by the errors Verify returns.
	ErrCorrupt = errors.New("mem: corrupt free list")
)
