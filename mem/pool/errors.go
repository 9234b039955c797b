package pool

import "errors"

var (
	// ErrBadThreshold indicates a threshold larger than the puddle size.
	ErrBadThreshold = errors.New("pool: threshold exceeds puddle size")

	// ErrBadPuddleSize indicates a puddle too small to hold its header.
	ErrBadPuddleSize = errors.New("pool: puddle size too small")
)
